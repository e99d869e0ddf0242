package op

import (
	"iter"

	"github.com/nickyhof/TableDB/core"
)

// Checker validates a value before it is written to a column. The engine
// uses it to run foreign-key checks against other tables.
type Checker interface {
	CheckValue(table *Table, column int, value core.Value) error
}

// Table owns an ordered schema, positionally addressed rows and the foreign
// keys sourced from its columns. A Table is not safe for concurrent use; the
// engine serializes access.
type Table struct {
	name        string
	columns     []core.Column
	rows        []core.Row
	foreignKeys []core.ForeignKey
	version     uint64
}

// NewTable creates an empty table. Column names must be unique and non-empty;
// primary-key and foreign-key flags in columns are ignored.
func NewTable(name string, columns []core.Column) (*Table, error) {
	if name == "" {
		return nil, core.Errorf(core.SchemaError, "create table", "table name is empty")
	}
	if len(columns) == 0 {
		return nil, core.Errorf(core.SchemaError, "create table", "table %s has no columns", name)
	}

	seen := make(map[string]bool, len(columns))
	cols := make([]core.Column, len(columns))
	for i, col := range columns {
		if col.Name == "" {
			return nil, core.Errorf(core.SchemaError, "create table", "column %d of %s has no name", i, name)
		}
		if seen[col.Name] {
			return nil, core.Errorf(core.SchemaError, "create table", "duplicate column %s in %s", col.Name, name)
		}
		if !col.Type.Valid() {
			return nil, core.Errorf(core.SchemaError, "create table", "column %s has unknown type %d", col.Name, int(col.Type))
		}
		seen[col.Name] = true
		cols[i] = core.Column{Name: col.Name, Type: col.Type}
	}

	return &Table{
		name:    name,
		columns: cols,
	}, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.columns) }

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return len(t.rows) }

// Version increases on every mutation of the table.
func (t *Table) Version() uint64 { return t.version }

// Columns returns a copy of the schema in order.
func (t *Table) Columns() []core.Column {
	out := make([]core.Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.columns {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// Column returns the column at index.
func (t *Table) Column(index int) (core.Column, error) {
	if index < 0 || index >= len(t.columns) {
		return core.Column{}, core.Errorf(core.RowError, "column", "column index %d out of range [0,%d)", index, len(t.columns))
	}
	return t.columns[index], nil
}

// Row returns a copy of the row at index.
func (t *Table) Row(index int) (core.Row, error) {
	if index < 0 || index >= len(t.rows) {
		return nil, core.Errorf(core.RowError, "row", "row index %d out of range [0,%d)", index, len(t.rows))
	}
	return t.rows[index].Clone(), nil
}

// Rows returns copies of every row in order.
func (t *Table) Rows() []core.Row {
	out := make([]core.Row, len(t.rows))
	for i, row := range t.rows {
		out[i] = row.Clone()
	}
	return out
}

// Value returns a single cell.
func (t *Table) Value(row, column int) (core.Value, error) {
	if err := t.checkBounds("value", row, column); err != nil {
		return core.Value{}, err
	}
	return t.rows[row][column], nil
}

// Scan yields each row with its current position. The rows are copies.
func (t *Table) Scan() iter.Seq2[int, core.Row] {
	return func(yield func(int, core.Row) bool) {
		for i, row := range t.rows {
			if !yield(i, row.Clone()) {
				return
			}
		}
	}
}

// Insert appends a row built from values, one per column. Each value is
// coerced to its column's kind and checked before anything is appended.
// It returns the new row's position, valid until the next delete.
func (t *Table) Insert(values []any, checker Checker) (int, error) {
	if len(values) != len(t.columns) {
		return -1, core.Errorf(core.RowError, "insert", "table %s expects %d values, got %d", t.name, len(t.columns), len(values))
	}

	row := make(core.Row, len(t.columns))
	for i, raw := range values {
		v, err := core.Coerce(raw, t.columns[i].Type)
		if err != nil {
			return -1, core.Errorf(core.RowError, "insert", "column %s: %v", t.columns[i].Name, err)
		}
		row[i] = v
	}

	for i, v := range row {
		if err := t.checkWrite("insert", -1, i, v, checker); err != nil {
			return -1, err
		}
	}

	t.rows = append(t.rows, row)
	t.version++
	return len(t.rows) - 1, nil
}

// Update replaces a single value in place.
func (t *Table) Update(row, column int, value any, checker Checker) error {
	if err := t.checkBounds("update", row, column); err != nil {
		return err
	}

	v, err := core.Coerce(value, t.columns[column].Type)
	if err != nil {
		return core.Errorf(core.RowError, "update", "column %s: %v", t.columns[column].Name, err)
	}

	if err := t.checkWrite("update", row, column, v, checker); err != nil {
		return err
	}

	t.rows[row][column] = v
	t.version++
	return nil
}

// Delete removes a row. Every later row moves down one position.
func (t *Table) Delete(row int) error {
	if row < 0 || row >= len(t.rows) {
		return core.Errorf(core.RowError, "delete", "row index %d out of range [0,%d)", row, len(t.rows))
	}

	t.rows = append(t.rows[:row], t.rows[row+1:]...)
	t.version++
	return nil
}

func (t *Table) checkBounds(op string, row, column int) error {
	if row < 0 || row >= len(t.rows) {
		return core.Errorf(core.RowError, op, "row index %d out of range [0,%d)", row, len(t.rows))
	}
	if column < 0 || column >= len(t.columns) {
		return core.Errorf(core.RowError, op, "column index %d out of range [0,%d)", column, len(t.columns))
	}
	return nil
}

// checkWrite runs primary-key uniqueness and the external checker for a
// value about to land in column. skipRow is the row being updated, or -1.
func (t *Table) checkWrite(op string, skipRow, column int, v core.Value, checker Checker) error {
	col := t.columns[column]
	if col.PrimaryKey {
		for i, row := range t.rows {
			if i != skipRow && row[column].Equal(v) {
				return core.Errorf(core.RowError, op, "duplicate primary key %s=%s in %s", col.Name, v, t.name)
			}
		}
	}

	if checker != nil {
		if err := checker.CheckValue(t, column, v); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns a detached copy of the table's schema, rows and
// constraints.
func (t *Table) Snapshot() core.TableSnapshot {
	fks := make([]core.ForeignKey, len(t.foreignKeys))
	copy(fks, t.foreignKeys)
	return core.TableSnapshot{
		Name:        t.name,
		Columns:     t.Columns(),
		Rows:        t.Rows(),
		ForeignKeys: fks,
	}
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	snap := t.Snapshot()
	return &Table{
		name:        snap.Name,
		columns:     snap.Columns,
		rows:        snap.Rows,
		foreignKeys: snap.ForeignKeys,
		version:     t.version,
	}
}
