package db

import (
	"slices"

	"github.com/google/btree"

	"github.com/nickyhof/TableDB/core"
	"github.com/nickyhof/TableDB/op"
)

const indexDegree = 32

// IntegrityChecker resolves foreign keys against the catalog by name and
// checks referenced values through a B-tree index per referenced column.
// It is not safe for concurrent use; the Engine calls it under its lock.
type IntegrityChecker struct {
	resolve func(name string) *op.Table
	indexes map[indexKey]*valueIndex
}

type indexKey struct {
	table  *op.Table
	column int
}

type valueIndex struct {
	version uint64
	values  *btree.BTreeG[core.Value]
}

// NewIntegrityChecker returns a checker that looks tables up through resolve.
func NewIntegrityChecker(resolve func(name string) *op.Table) *IntegrityChecker {
	return &IntegrityChecker{
		resolve: resolve,
		indexes: make(map[indexKey]*valueIndex),
	}
}

// Violation is a row whose constrained value is missing from the referenced
// column.
type Violation struct {
	ForeignKey core.ForeignKey
	Row        int
	Value      core.Value
}

// Dangling is a constraint whose referenced table or column cannot be
// resolved. It stays on the table until it is removed explicitly.
type Dangling struct {
	ForeignKey core.ForeignKey
	Reason     string
}

type ValidationReport struct {
	Table      string
	Violations []Violation
	Dangling   []Dangling
}

// Valid reports whether the table has no violations and no dangling
// constraints.
func (r ValidationReport) Valid() bool {
	return len(r.Violations) == 0 && len(r.Dangling) == 0
}

// Rows returns the distinct violating row positions in ascending order.
func (r ValidationReport) Rows() []int {
	rows := make([]int, 0, len(r.Violations))
	for _, v := range r.Violations {
		rows = append(rows, v.Row)
	}
	slices.Sort(rows)
	return slices.Compact(rows)
}

// AddConstraint attaches column -> refTable.refColumn to table. Existing rows
// are not checked; use ValidateAll for that.
func (c *IntegrityChecker) AddConstraint(table *op.Table, column, refTable, refColumn string) error {
	const opName = "add foreign key"

	idx := table.ColumnIndex(column)
	if idx < 0 {
		return core.Errorf(core.ReferentialIntegrityError, opName, "column %s does not exist in %s", column, table.Name())
	}
	if _, exists := table.ForeignKey(column); exists {
		return core.Errorf(core.ReferentialIntegrityError, opName, "column %s.%s already has a foreign key", table.Name(), column)
	}

	ref := c.resolve(refTable)
	if ref == nil {
		return core.Errorf(core.ReferentialIntegrityError, opName, "referenced table %s does not exist", refTable)
	}
	refIdx := ref.ColumnIndex(refColumn)
	if refIdx < 0 {
		return core.Errorf(core.ReferentialIntegrityError, opName, "referenced column %s.%s does not exist", refTable, refColumn)
	}

	local, _ := table.Column(idx)
	remote, _ := ref.Column(refIdx)
	if local.Type != remote.Type {
		return core.Errorf(core.ReferentialIntegrityError, opName, "type mismatch: %s.%s is %s but %s.%s is %s",
			table.Name(), column, local.Type, refTable, refColumn, remote.Type)
	}

	return table.AttachForeignKey(core.ForeignKey{Column: column, RefTable: refTable, RefColumn: refColumn})
}

// RemoveConstraint detaches the constraint sourced from column.
func (c *IntegrityChecker) RemoveConstraint(table *op.Table, column string) (core.ForeignKey, error) {
	return table.DetachForeignKey(column)
}

// CheckValue implements op.Checker. Zero values always pass.
func (c *IntegrityChecker) CheckValue(table *op.Table, column int, value core.Value) error {
	col, err := table.Column(column)
	if err != nil {
		return err
	}
	fk, ok := table.ForeignKey(col.Name)
	if !ok || value.IsZero() {
		return nil
	}

	ref, refIdx, reason := c.target(fk)
	if ref == nil {
		return core.Errorf(core.ReferentialIntegrityError, "check", "%s.%s: %s", table.Name(), fk, reason)
	}
	if !c.contains(ref, refIdx, value) {
		return core.Errorf(core.ReferentialIntegrityError, "check", "value %s for %s.%s not found in %s.%s",
			value, table.Name(), col.Name, fk.RefTable, fk.RefColumn)
	}
	return nil
}

// ValidateAll checks every row of table against every constraint on it.
// Non-zero values under a dangling constraint count as violations.
func (c *IntegrityChecker) ValidateAll(table *op.Table) ValidationReport {
	report := ValidationReport{Table: table.Name()}

	for _, fk := range table.ForeignKeys() {
		ref, refIdx, reason := c.target(fk)
		if ref == nil {
			report.Dangling = append(report.Dangling, Dangling{ForeignKey: fk, Reason: reason})
		}

		idx := table.ColumnIndex(fk.Column)
		for i := 0; i < table.NumRows(); i++ {
			v, _ := table.Value(i, idx)
			if v.IsZero() {
				continue
			}
			if ref == nil || !c.contains(ref, refIdx, v) {
				report.Violations = append(report.Violations, Violation{ForeignKey: fk, Row: i, Value: v})
			}
		}
	}
	return report
}

// Reset drops every cached index.
func (c *IntegrityChecker) Reset() {
	clear(c.indexes)
}

func (c *IntegrityChecker) target(fk core.ForeignKey) (*op.Table, int, string) {
	ref := c.resolve(fk.RefTable)
	if ref == nil {
		return nil, -1, "referenced table " + fk.RefTable + " does not exist"
	}
	idx := ref.ColumnIndex(fk.RefColumn)
	if idx < 0 {
		return nil, -1, "referenced column " + fk.RefTable + "." + fk.RefColumn + " does not exist"
	}
	return ref, idx, ""
}

func (c *IntegrityChecker) contains(ref *op.Table, column int, v core.Value) bool {
	key := indexKey{table: ref, column: column}
	idx, ok := c.indexes[key]
	if !ok || idx.version != ref.Version() {
		idx = buildIndex(ref, column)
		c.indexes[key] = idx
	}
	return idx.values.Has(v)
}

func buildIndex(table *op.Table, column int) *valueIndex {
	values := btree.NewG(indexDegree, func(a, b core.Value) bool {
		return a.Compare(b) < 0
	})
	for i := 0; i < table.NumRows(); i++ {
		v, _ := table.Value(i, column)
		values.ReplaceOrInsert(v)
	}
	return &valueIndex{version: table.Version(), values: values}
}
