package orm

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/nerrad567/recordstore/internal/infrastructure/database"
)

// identifierPattern restricts table and column names to plain identifiers.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var (
	integerEnumType       = reflect.TypeFor[IntegerEnum]()
	integerEnumSetterType = reflect.TypeFor[IntegerEnumSetter]()
	textEnumType          = reflect.TypeFor[TextEnum]()
	textEnumSetterType    = reflect.TypeFor[TextEnumSetter]()
	recordType            = reflect.TypeFor[Record]()
)

// descriptors caches one *Descriptor per struct type.
var descriptors sync.Map

// Column describes one persisted field.
type Column struct {
	Name       string
	Kind       Kind
	PrimaryKey bool

	index    []int    // field path, through flattened embedded structs
	pointer  bool     // field is *T
	nullable bool     // nil binds as NULL
	enum     EnumKind // enumNone unless listed in the policy
	rawBytes bool     // []byte stored as-is, no codec
}

// Descriptor is the schema derived from a record type.
// It is immutable once built.
type Descriptor struct {
	Table   string
	Type    reflect.Type
	Columns []Column

	unusedEnumKeys []string
}

// Names returns the column names in declaration order.
func (d *Descriptor) Names() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey returns the primary key column, if any.
func (d *Descriptor) PrimaryKey() (Column, bool) {
	for _, c := range d.Columns {
		if c.PrimaryKey {
			return c, true
		}
	}
	return Column{}, false
}

// UnusedEnumKeys returns enum policy keys that matched no column, sorted.
func (d *Descriptor) UnusedEnumKeys() []string {
	return append([]string(nil), d.unusedEnumKeys...)
}

// DescribeOf returns the descriptor for T.
func DescribeOf[T Record]() (*Descriptor, error) {
	return Describe(reflect.TypeFor[T]())
}

// Describe returns the descriptor for a struct type or pointer to struct
// type implementing Record. Descriptors are built once per type.
//
// Fields are classified in declaration order:
//   - string → Text
//   - signed and unsigned integers → Integer
//   - float32, float64 → Real
//   - bool → Boolean
//   - struct, slice, array, map → Blob ([]byte is stored raw)
//
// A pointer to any of these is the same kind and stores nil as NULL.
// Fields listed in the enum policy are stored as their raw Integer or
// Text value instead. Any other field type fails the whole call with
// ErrInvalidType.
func Describe(t reflect.Type) (*Descriptor, error) {
	if t == nil {
		return nil, ErrNotStruct
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotStruct, t)
	}

	if cached, ok := descriptors.Load(t); ok {
		return cached.(*Descriptor), nil
	}

	desc, err := buildDescriptor(t)
	if err != nil {
		return nil, err
	}
	actual, _ := descriptors.LoadOrStore(t, desc)
	return actual.(*Descriptor), nil
}

func buildDescriptor(t reflect.Type) (*Descriptor, error) {
	if !reflect.PointerTo(t).Implements(recordType) {
		return nil, fmt.Errorf("%w: %s does not implement Record", ErrInvalidType, t)
	}
	rec := reflect.New(t).Interface().(Record)
	table, pkName, policy := tableOf(rec)

	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("%w: table %q of %s", ErrInvalidIdentifier, table, t)
	}
	// Migration treats "<x>_bak" and "<x>_bak_<n>" tables as its own backups.
	if database.IsBackupName(table) {
		return nil, fmt.Errorf("%w: table %q of %s is a reserved backup name", ErrInvalidIdentifier, table, t)
	}

	b := &builder{
		policy: policy,
		used:   make(map[string]bool),
		seen:   make(map[string]bool),
	}
	if err := b.collect(t, nil); err != nil {
		return nil, fmt.Errorf("describing %s: %w", t, err)
	}
	if len(b.columns) == 0 {
		return nil, fmt.Errorf("%w: %s has no persisted fields", ErrInvalidType, t)
	}

	var keys []string
	for i := range b.columns {
		c := &b.columns[i]
		if pkName != "" && c.Name == pkName {
			c.PrimaryKey = true
		}
		if c.PrimaryKey {
			keys = append(keys, c.Name)
		}
	}
	if len(keys) > 1 {
		return nil, fmt.Errorf("%w: %s marks %s", ErrMultiplePrimaryKeys, t, strings.Join(keys, ", "))
	}

	desc := &Descriptor{
		Table:   table,
		Type:    t,
		Columns: b.columns,
	}
	for key := range policy {
		if !b.used[key] {
			desc.unusedEnumKeys = append(desc.unusedEnumKeys, key)
		}
	}
	sort.Strings(desc.unusedEnumKeys)
	return desc, nil
}

// builder accumulates columns while walking a struct and its embedded structs.
type builder struct {
	policy  EnumPolicy
	used    map[string]bool // policy keys that matched a column
	seen    map[string]bool // column names already taken
	columns []Column
}

func (b *builder) collect(t reflect.Type, index []int) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		path := append(append([]int(nil), index...), i)

		tag := f.Tag.Get("db")
		if tag == "-" {
			continue
		}
		name, opts := parseTag(tag)

		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			if err := b.collect(f.Type, path); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() {
			continue
		}

		if name == "" {
			name = snakeCase(f.Name)
		}
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("%w: column %q", ErrInvalidIdentifier, name)
		}
		if b.seen[name] {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidType, name)
		}

		col, err := b.classify(f.Type, name)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		col.index = path
		col.PrimaryKey = opts["pk"]

		b.seen[name] = true
		b.columns = append(b.columns, col)
	}
	return nil
}

// classify maps a field type to its column.
func (b *builder) classify(ft reflect.Type, name string) (Column, error) {
	col := Column{Name: name}

	if kind, ok := b.policy[name]; ok {
		b.used[name] = true
		switch kind {
		case EnumInteger:
			if !ft.Implements(integerEnumType) || !reflect.PointerTo(ft).Implements(integerEnumSetterType) {
				return col, fmt.Errorf("%w: %s does not implement IntegerEnum", ErrInvalidType, ft)
			}
			col.Kind = KindInteger
		case EnumText:
			if !ft.Implements(textEnumType) || !reflect.PointerTo(ft).Implements(textEnumSetterType) {
				return col, fmt.Errorf("%w: %s does not implement TextEnum", ErrInvalidType, ft)
			}
			col.Kind = KindText
		default:
			return col, fmt.Errorf("%w: unknown enum kind %d", ErrInvalidType, kind)
		}
		col.enum = kind
		return col, nil
	}

	base := ft
	if base.Kind() == reflect.Pointer {
		col.pointer = true
		col.nullable = true
		base = base.Elem()
	}

	switch base.Kind() {
	case reflect.String:
		col.Kind = KindText
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		col.Kind = KindInteger
	case reflect.Float32, reflect.Float64:
		col.Kind = KindReal
	case reflect.Bool:
		col.Kind = KindBoolean
	case reflect.Slice:
		col.Kind = KindBlob
		col.nullable = true
		col.rawBytes = !col.pointer && base.Elem().Kind() == reflect.Uint8
	case reflect.Map:
		col.Kind = KindBlob
		col.nullable = true
	case reflect.Struct, reflect.Array:
		col.Kind = KindBlob
	default:
		return col, fmt.Errorf("%w: %s", ErrInvalidType, ft)
	}
	return col, nil
}

// parseTag splits `db:"name,opt1,opt2"`.
func parseTag(tag string) (string, map[string]bool) {
	parts := strings.Split(tag, ",")
	opts := make(map[string]bool, len(parts)-1)
	for _, o := range parts[1:] {
		opts[strings.TrimSpace(o)] = true
	}
	return strings.TrimSpace(parts[0]), opts
}

// snakeCase converts a Go field name to a column name:
// "UserID" → "user_id", "HTTPServer" → "http_server".
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
