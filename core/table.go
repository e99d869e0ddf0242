package core

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnType is the declared kind of a column. The numeric values are the
// type codes used by the JSON document format.
type ColumnType int

const (
	IntType ColumnType = iota
	FloatType
	TextType
)

// String returns the type name used by the shell and Describe.
func (t ColumnType) String() string {
	switch t {
	case IntType:
		return "INT"
	case FloatType:
		return "FLOAT"
	case TextType:
		return "TEXT"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// Valid reports whether t is one of the supported kinds.
func (t ColumnType) Valid() bool {
	return t == IntType || t == FloatType || t == TextType
}

// ParseColumnType converts a type name or numeric type code to a ColumnType.
func ParseColumnType(name string) (ColumnType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "INT", "INTEGER":
		return IntType, nil
	case "FLOAT", "REAL", "DOUBLE":
		return FloatType, nil
	case "TEXT", "STRING", "VARCHAR":
		return TextType, nil
	}

	code, err := strconv.Atoi(strings.TrimSpace(name))
	if err == nil && ColumnType(code).Valid() {
		return ColumnType(code), nil
	}

	return 0, Errorf(SchemaError, "parse type", "unknown column type %q", name)
}

type Column struct {
	Name       string
	Type       ColumnType
	PrimaryKey bool
	ForeignKey bool
}

// Row holds one value per column, addressed by column position.
type Row []Value

// Clone returns a copy of the row that shares no backing array with r.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// ForeignKey is a name-based reference from a column of the owning table to
// a column of another table. It is resolved against the catalog every time
// it is used.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// String formats the constraint as "column -> Table.column".
func (fk ForeignKey) String() string {
	return fmt.Sprintf("%s -> %s.%s", fk.Column, fk.RefTable, fk.RefColumn)
}

// TableSnapshot is a detached copy of a table used for export and bulk load.
type TableSnapshot struct {
	Name        string
	Columns     []Column
	Rows        []Row
	ForeignKeys []ForeignKey
}

// Identity identifies the author of a backup revision.
type Identity struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// String formats the identity as "Name <email>".
func (identity Identity) String() string {
	return fmt.Sprintf("%s <%s>", identity.Name, identity.Email)
}
