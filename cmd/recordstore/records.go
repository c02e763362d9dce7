package main

import (
	"fmt"

	"github.com/nerrad567/recordstore/internal/orm"
)

// Role is stored by its integer raw value.
type Role int

// Roles, in increasing privilege.
const (
	RoleGuest Role = iota
	RoleMember
	RoleOwner
)

// RawInteger returns the stored value of r.
func (r Role) RawInteger() int64 { return int64(r) }

// SetRawInteger sets r from a stored value, rejecting unknown roles.
func (r *Role) SetRawInteger(v int64) error {
	if v < int64(RoleGuest) || v > int64(RoleOwner) {
		return fmt.Errorf("unknown role %d", v)
	}
	*r = Role(v)
	return nil
}

// String returns the role name used in logs.
func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleOwner:
		return "owner"
	default:
		return "guest"
	}
}

// Profile is persisted inside the users table as an encoded blob.
type Profile struct {
	Age   int    `json:"age" bson:"age" codec:"age"`
	Email string `json:"email" bson:"email" codec:"email"`
}

// User is the demo record.
type User struct {
	ID       int64 `db:"id,pk"`
	Name     string
	Profiles []Profile `db:"profile"`
	IsSelf   bool
	Role     Role
}

// TableName returns the table users are stored in.
func (User) TableName() string { return "users" }

// EnumPolicy stores Role by its integer value.
func (User) EnumPolicy() orm.EnumPolicy {
	return orm.EnumPolicy{"role": orm.EnumInteger}
}

// demoTables lists every record type the demo store manages.
func demoTables() []orm.Schema {
	return []orm.Schema{orm.SchemaOf[User]()}
}
