package orm

// Record is implemented by every type persisted as a table row.
// The zero value of the type must be a valid record.
type Record interface {
	TableName() string
}

// PrimaryKeyed is implemented by records that name their primary key
// column. The `pk` tag option is an alternative.
type PrimaryKeyed interface {
	PrimaryKey() string
}

// EnumMapped is implemented by records that store enumeration fields as
// raw scalars instead of encoded payloads.
type EnumMapped interface {
	EnumPolicy() EnumPolicy
}

// EnumPolicy maps column names to the raw scalar kind of an enumeration
// field. Keys that name no column are ignored.
type EnumPolicy map[string]EnumKind

// IntegerEnum is an enumeration persisted as its integer raw value.
type IntegerEnum interface {
	RawInteger() int64
}

// IntegerEnumSetter restores an IntegerEnum from its raw value. It is
// implemented on the pointer type and rejects values with no matching case.
type IntegerEnumSetter interface {
	SetRawInteger(v int64) error
}

// TextEnum is an enumeration persisted as its text raw value.
type TextEnum interface {
	RawText() string
}

// TextEnumSetter restores a TextEnum from its raw value.
type TextEnumSetter interface {
	SetRawText(v string) error
}

// tableOf returns the table name, primary key name and enum policy
// declared by rec.
func tableOf(rec Record) (table, primaryKey string, policy EnumPolicy) {
	table = rec.TableName()
	if pk, ok := rec.(PrimaryKeyed); ok {
		primaryKey = pk.PrimaryKey()
	}
	if em, ok := rec.(EnumMapped); ok {
		policy = em.EnumPolicy()
	}
	return table, primaryKey, policy
}
