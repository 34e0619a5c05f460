package schema

import "strings"

// Kind is how the migrator treats a column's values.
type Kind int

const (
	KindScalar Kind = iota
	KindArray
	KindEnum
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindArray:
		return "array"
	case KindEnum:
		return "enum"
	case KindTimestamp:
		return "timestamp"
	default:
		return "scalar"
	}
}

// MarshalText lets Kind show up by name in JSON output (inspect command).
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type Table struct {
	Name         string
	Columns      []*Column
	PrimaryKey   []string   // 키 순서대로
	UniqueKeys   [][]string // full (non-partial) unique indexes, each in key order
	ForeignKeys  []*ForeignKey
	Dependencies []string // 의존성 분석용
}

type Column struct {
	Name        string
	Position    int
	IsNullable  bool
	IsPK        bool
	IsUnique    bool // single-column unique constraint or index
	IsIdentity  bool // value generated by the database (identity, auto_increment)
	Kind        Kind
	DataType    string // normalized by the dialect
	NativeType  string // underlying type name (udt_name on postgres)
	ColumnType  string // full declared type, e.g. enum('a','b') or varchar(20)
	ElementType string // arrays only
	ElementEnum bool   // arrays of an enum type
	EnumLabels  []string
}

type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c != nil && c.Name == name {
			return c
		}
	}
	return nil
}

// IdentityColumns returns the names of the database-generated columns.
func (t *Table) IdentityColumns() []string {
	var out []string
	for _, c := range t.Columns {
		if c != nil && c.IsIdentity {
			out = append(out, c.Name)
		}
	}
	return out
}

func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c != nil {
			names = append(names, c.Name)
		}
	}
	return names
}

// CastType is the type annotation a bound value needs to reach this column:
// enum type, element[] for arrays, the temporal type for timestamps.
func (c *Column) CastType() string {
	switch c.Kind {
	case KindEnum:
		if c.NativeType == "" || strings.EqualFold(c.NativeType, "enum") {
			return "" // inline enum (mysql), nothing to cast to
		}
		return c.NativeType
	case KindArray:
		if c.ElementType == "" {
			return ""
		}
		return c.ElementType + "[]"
	case KindTimestamp:
		return c.NativeType
	default:
		return ""
	}
}
