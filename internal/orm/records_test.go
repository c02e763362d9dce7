package orm

import "fmt"

// Color is an integer-backed enumeration.
type Color int

const (
	Red Color = iota + 1
	Green
	Blue
)

func (c Color) RawInteger() int64 { return int64(c) }

func (c *Color) SetRawInteger(v int64) error {
	if v < int64(Red) || v > int64(Blue) {
		return fmt.Errorf("no color with raw value %d", v)
	}
	*c = Color(v)
	return nil
}

// Mood is a text-backed enumeration.
type Mood string

const (
	Calm  Mood = "calm"
	Eager Mood = "eager"
)

func (m Mood) RawText() string { return string(m) }

func (m *Mood) SetRawText(v string) error {
	switch Mood(v) {
	case Calm, Eager:
		*m = Mood(v)
		return nil
	default:
		return fmt.Errorf("no mood %q", v)
	}
}

type address struct {
	Street string `json:"street" bson:"street" codec:"street"`
	Zip    string `json:"zip" bson:"zip" codec:"zip"`
}

type audit struct {
	CreatedBy string
	Revision  int32
}

// person exercises every storage kind.
type person struct {
	ID       int64 `db:"id"`
	Name     string
	Nick     *string
	Age      uint8
	Score    float64
	Weight   *float32
	Active   bool
	Verified *bool
	Favorite Color
	Mood     Mood
	Home     address
	Work     *address
	Tags     []string
	Avatar   []byte
	Counts   map[string]int
	audit

	secret  string
	Ignored string `db:"-"`
}

func (person) TableName() string  { return "people" }
func (person) PrimaryKey() string { return "id" }
func (person) EnumPolicy() EnumPolicy {
	return EnumPolicy{"favorite": EnumInteger, "mood": EnumText, "ghost": EnumInteger}
}

// flat has only primitive fields.
type flat struct {
	Label   string
	Count   int
	Big     uint64
	Ratio   float32
	Enabled bool
}

func (flat) TableName() string { return "flat" }

type taggedKey struct {
	Code string `db:"code,pk"`
	Note string
}

func (*taggedKey) TableName() string { return "tagged" }

type twoKeys struct {
	A string `db:"a,pk"`
	B string `db:"b"`
}

func (twoKeys) TableName() string  { return "two_keys" }
func (twoKeys) PrimaryKey() string { return "b" }

type withChan struct {
	C chan int
}

func (withChan) TableName() string { return "chans" }

type badEnum struct {
	Level int
}

func (badEnum) TableName() string     { return "bad_enum" }
func (badEnum) EnumPolicy() EnumPolicy { return EnumPolicy{"level": EnumInteger} }

type badTable struct {
	X int
}

func (badTable) TableName() string { return "bad table" }

// feedBackup and salesArchive use names the migrator keeps for its backups.
type feedBackup struct {
	ID int64
}

func (feedBackup) TableName() string { return "feed_bak" }

type salesArchive struct {
	ID int64
}

func (salesArchive) TableName() string { return "sales_bak_2024" }

// lineItem has columns named after SQL keywords.
type lineItem struct {
	ID     int64 `db:"id,pk"`
	Order  int64
	Group  string
	Select bool
}

func (lineItem) TableName() string { return "line_items" }

// widgetV1 and widgetV2 share a table across a schema change.
type widgetV1 struct {
	A string `db:"a,pk"`
	B int64  `db:"b"`
}

func (widgetV1) TableName() string { return "widgets" }

type widgetV2 struct {
	A string `db:"a,pk"`
	C *int64 `db:"c"`
}

func (widgetV2) TableName() string { return "widgets" }

// gauge is stored in a table created with a CHECK constraint.
type gauge struct {
	ID    int64 `db:"id,pk"`
	Level int64 `db:"level"`
}

func (gauge) TableName() string { return "gauges" }

// note has optional columns for replace semantics.
type note struct {
	ID    string  `db:"id,pk"`
	Title *string `db:"title"`
	Body  string  `db:"body"`
}

func (note) TableName() string { return "notes" }

func ptr[T any](v T) *T { return &v }
