package op

import (
	"github.com/nickyhof/TableDB/core"
)

// AddColumn appends a column and fills it with def in every existing row.
func (t *Table) AddColumn(name string, kind core.ColumnType, def any) error {
	if name == "" {
		return core.Errorf(core.SchemaError, "add column", "column name is empty")
	}
	if t.ColumnIndex(name) >= 0 {
		return core.Errorf(core.SchemaError, "add column", "column %s already exists in %s", name, t.name)
	}
	if !kind.Valid() {
		return core.Errorf(core.SchemaError, "add column", "column %s has unknown type %d", name, int(kind))
	}

	v, err := core.Coerce(def, kind)
	if err != nil {
		return core.Errorf(core.SchemaError, "add column", "default for %s: %v", name, err)
	}

	t.columns = append(t.columns, core.Column{Name: name, Type: kind})
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], v)
	}
	t.version++
	return nil
}

// DropColumn removes a column and its value from every row. A foreign key
// sourced from the column is removed with it and returned.
func (t *Table) DropColumn(name string) (*core.ForeignKey, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, core.Errorf(core.SchemaError, "drop column", "column %s does not exist in %s", name, t.name)
	}
	if len(t.columns) == 1 {
		return nil, core.Errorf(core.SchemaError, "drop column", "cannot drop the last column of %s", t.name)
	}

	var removed *core.ForeignKey
	if fk, ok := t.ForeignKey(name); ok {
		removed = &fk
		t.removeForeignKey(name)
	}

	t.columns = append(t.columns[:idx], t.columns[idx+1:]...)
	for i, row := range t.rows {
		t.rows[i] = append(row[:idx], row[idx+1:]...)
	}
	t.version++
	return removed, nil
}

// RenameColumn renames a column and any foreign key sourced from it.
func (t *Table) RenameColumn(oldName, newName string) error {
	idx := t.ColumnIndex(oldName)
	if idx < 0 {
		return core.Errorf(core.SchemaError, "rename column", "column %s does not exist in %s", oldName, t.name)
	}
	if newName == "" {
		return core.Errorf(core.SchemaError, "rename column", "column name is empty")
	}
	if oldName == newName {
		return nil
	}
	if t.ColumnIndex(newName) >= 0 {
		return core.Errorf(core.SchemaError, "rename column", "column %s already exists in %s", newName, t.name)
	}

	t.columns[idx].Name = newName
	for i := range t.foreignKeys {
		if t.foreignKeys[i].Column == oldName {
			t.foreignKeys[i].Column = newName
		}
	}
	t.version++
	return nil
}

// SetPrimaryKey sets or clears the primary-key flag of a column. Enabling it
// requires the existing values of the column to be unique.
func (t *Table) SetPrimaryKey(name string, on bool) error {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return core.Errorf(core.SchemaError, "set primary key", "column %s does not exist in %s", name, t.name)
	}

	if on {
		for i := range t.rows {
			for j := i + 1; j < len(t.rows); j++ {
				if t.rows[i][idx].Equal(t.rows[j][idx]) {
					return core.Errorf(core.SchemaError, "set primary key", "column %s has duplicate value %s at rows %d and %d", name, t.rows[i][idx], i, j)
				}
			}
		}
	}

	t.columns[idx].PrimaryKey = on
	t.version++
	return nil
}

// Transform builds a new table under newColumns. Values are carried over by
// column name and converted when the kind changed; columns that exist only in
// newColumns get the zero value of their kind. Foreign keys survive when their
// source column keeps its name and kind. The receiver is not modified.
func (t *Table) Transform(newColumns []core.Column) (*Table, error) {
	next, err := NewTable(t.name, newColumns)
	if err != nil {
		return nil, err
	}

	sources := make([]int, len(newColumns))
	for j, col := range newColumns {
		sources[j] = t.ColumnIndex(col.Name)
		next.columns[j].PrimaryKey = col.PrimaryKey
	}

	next.rows = make([]core.Row, 0, len(t.rows))
	for i, row := range t.rows {
		out := make(core.Row, len(newColumns))
		for j, col := range next.columns {
			if sources[j] < 0 {
				out[j] = core.Zero(col.Type)
				continue
			}
			v, err := core.Coerce(row[sources[j]], col.Type)
			if err != nil {
				return nil, core.Errorf(core.SchemaError, "transform", "row %d column %s: %v", i, col.Name, err)
			}
			out[j] = v
		}
		next.rows = append(next.rows, out)
	}

	for j, col := range next.columns {
		if !col.PrimaryKey {
			continue
		}
		seen := make(map[core.Value]int, len(next.rows))
		for i, row := range next.rows {
			if prev, dup := seen[row[j]]; dup {
				return nil, core.Errorf(core.SchemaError, "transform", "primary key %s has duplicate value %s at rows %d and %d", col.Name, row[j], prev, i)
			}
			seen[row[j]] = i
		}
	}

	for _, fk := range t.foreignKeys {
		oldIdx := t.ColumnIndex(fk.Column)
		newIdx := next.ColumnIndex(fk.Column)
		if newIdx < 0 || t.columns[oldIdx].Type != next.columns[newIdx].Type {
			continue
		}
		next.foreignKeys = append(next.foreignKeys, fk)
		next.columns[newIdx].ForeignKey = true
	}

	next.version = t.version + 1
	return next, nil
}
