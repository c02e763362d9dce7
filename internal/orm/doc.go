// Package orm maps Go struct records onto SQLite tables.
//
// A record is any struct implementing Record. Its table schema is derived
// once per type from its exported fields and cached:
//
//	type User struct {
//	    ID     string  `db:"id,pk"`
//	    Name   string
//	    Email  *string
//	    Role   Role    // enum, see EnumPolicy
//	    Prefs  Settings // stored as an encoded BLOB
//	}
//
//	func (User) TableName() string { return "users" }
//	func (User) EnumPolicy() orm.EnumPolicy {
//	    return orm.EnumPolicy{"role": orm.EnumInteger}
//	}
//
// # Operations
//
//	m, err := orm.Open(ctx, orm.Options{
//	    Path:          path,
//	    Versions:      prefsStore,
//	    SchemaVersion: "2",
//	    Tables:        []orm.Schema{orm.SchemaOf[User]()},
//	})
//
//	err = orm.InsertOrUpdateAll(ctx, m, users, false)
//	admins, err := orm.Query[User](ctx, m, "role = 1")
//	err = m.DeleteTable(ctx, "users", map[string]string{"id": "u-1"})
//
// Writes use INSERT OR REPLACE: a row with the same primary key is
// replaced in full. A batch is one transaction; if any record fails the
// whole batch is rolled back.
//
// # Raw conditions
//
// Query's WHERE text and DeleteTable's column names are placed into SQL
// as given. Only DeleteTable values are quoted. Never build either from
// untrusted input.
//
// # Migration
//
// Open compares SchemaVersion with the version in Options.Versions and,
// when they differ, rebuilds every table in Options.Tables while keeping
// the data of the columns both versions share. See database.Migrator.
package orm
