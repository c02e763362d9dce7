package orm

// Kind is the storage class a field maps to.
type Kind int

// Storage kinds.
const (
	KindText Kind = iota
	KindInteger
	KindReal
	KindBoolean
	KindBlob
)

// String returns the kind name used in logs and errors.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindBoolean:
		return "boolean"
	case KindBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// SQLType returns the column type used in CREATE TABLE.
// Booleans are stored as INTEGER 0/1.
func (k Kind) SQLType() string {
	switch k {
	case KindText:
		return "TEXT"
	case KindInteger, KindBoolean:
		return "INTEGER"
	case KindReal:
		return "REAL"
	default:
		return "BLOB"
	}
}

// EnumKind is the raw scalar an enumeration field is persisted as.
type EnumKind int

// Enumeration storage kinds. enumNone marks a column outside the policy.
const (
	enumNone EnumKind = iota
	EnumInteger
	EnumText
)

// String returns the enum kind name.
func (k EnumKind) String() string {
	switch k {
	case EnumInteger:
		return "integer"
	case EnumText:
		return "text"
	default:
		return "none"
	}
}
