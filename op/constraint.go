package op

import (
	"github.com/nickyhof/TableDB/core"
)

// ForeignKeys returns a copy of the constraints sourced from this table, in
// the order they were added.
func (t *Table) ForeignKeys() []core.ForeignKey {
	out := make([]core.ForeignKey, len(t.foreignKeys))
	copy(out, t.foreignKeys)
	return out
}

// ForeignKey returns the constraint sourced from the named column.
func (t *Table) ForeignKey(column string) (core.ForeignKey, bool) {
	for _, fk := range t.foreignKeys {
		if fk.Column == column {
			return fk, true
		}
	}
	return core.ForeignKey{}, false
}

// AttachForeignKey records a constraint on the table. Only the local side is
// checked here; the engine resolves the referenced table and column.
func (t *Table) AttachForeignKey(fk core.ForeignKey) error {
	idx := t.ColumnIndex(fk.Column)
	if idx < 0 {
		return core.Errorf(core.ReferentialIntegrityError, "add foreign key", "column %s does not exist in %s", fk.Column, t.name)
	}
	if _, exists := t.ForeignKey(fk.Column); exists {
		return core.Errorf(core.ReferentialIntegrityError, "add foreign key", "column %s.%s already has a foreign key", t.name, fk.Column)
	}

	t.foreignKeys = append(t.foreignKeys, fk)
	t.columns[idx].ForeignKey = true
	t.version++
	return nil
}

// DetachForeignKey removes the constraint sourced from the named column.
func (t *Table) DetachForeignKey(column string) (core.ForeignKey, error) {
	fk, ok := t.ForeignKey(column)
	if !ok {
		return core.ForeignKey{}, core.Errorf(core.ReferentialIntegrityError, "remove foreign key", "column %s.%s has no foreign key", t.name, column)
	}
	t.removeForeignKey(column)
	t.version++
	return fk, nil
}

func (t *Table) removeForeignKey(column string) {
	kept := t.foreignKeys[:0]
	for _, fk := range t.foreignKeys {
		if fk.Column != column {
			kept = append(kept, fk)
		}
	}
	t.foreignKeys = kept

	if idx := t.ColumnIndex(column); idx >= 0 {
		t.columns[idx].ForeignKey = false
	}
}
