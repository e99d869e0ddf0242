package db

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nickyhof/TableDB/core"
	"github.com/nickyhof/TableDB/op"
)

// Engine is the catalog: it owns every table, routes foreign-key checks and
// manages the single open transaction. Every public method holds the engine
// lock for the duration of the call.
type Engine struct {
	mu        sync.Mutex
	tables    []*op.Table
	integrity *IntegrityChecker
	txn       *Transaction
	logger    *zap.Logger
}

type Option func(*Engine)

// WithLogger sets the logger used for warnings and load reports.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine returns an engine with an empty catalog.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: zap.NewNop()}
	e.integrity = NewIntegrityChecker(e.lookup)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) lookup(name string) *op.Table {
	if i := e.indexOf(name); i >= 0 {
		return e.tables[i]
	}
	return nil
}

func (e *Engine) indexOf(name string) int {
	for i, t := range e.tables {
		if t.Name() == name {
			return i
		}
	}
	return -1
}

func (e *Engine) table(opName, name string) (*op.Table, error) {
	t := e.lookup(name)
	if t == nil {
		return nil, core.Errorf(core.CatalogError, opName, "table %s does not exist", name)
	}
	return t, nil
}

func (e *Engine) result(start time.Time, ops int) CommitResult {
	res := CommitResult{
		ExecutionTimeSec: time.Since(start).Seconds(),
		ExecutionOps:     ops,
	}
	if e.txn != nil {
		res.TransactionId = e.txn.Id
	}
	return res
}

// CreateTable registers an empty table. Names are unique across the catalog.
func (e *Engine) CreateTable(name string, columns []core.Column) (CommitResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lookup(name) != nil {
		return CommitResult{}, core.Errorf(core.SchemaError, "create table", "table %s already exists", name)
	}
	t, err := op.NewTable(name, columns)
	if err != nil {
		return CommitResult{}, err
	}
	e.tables = append(e.tables, t)
	e.logger.Debug("table created", zap.String("table", name), zap.Int("columns", len(columns)))

	res := e.result(start, 1)
	res.TablesCreated = 1
	return res, nil
}

// DropTable removes a table. Constraints in other tables that reference it
// stay in place and are reported as dangling by ValidateForeignKeys.
func (e *Engine) DropTable(name string) (CommitResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(name)
	if i < 0 {
		return CommitResult{}, core.Errorf(core.CatalogError, "drop table", "table %s does not exist", name)
	}
	e.tables = append(e.tables[:i], e.tables[i+1:]...)
	e.integrity.Reset()

	res := e.result(start, 1)
	res.TablesDeleted = 1
	if dangling := e.referencing(name, ""); len(dangling) > 0 {
		res.Warning = "dangling foreign keys: " + strings.Join(dangling, ", ")
		e.logger.Warn("dropped table is still referenced", zap.String("table", name), zap.Strings("constraints", dangling))
	}
	return res, nil
}

// referencing lists constraints that point at table (and column, when not
// empty), formatted as "Table.column -> Ref.column".
func (e *Engine) referencing(table, column string) []string {
	var out []string
	for _, t := range e.tables {
		for _, fk := range t.ForeignKeys() {
			if fk.RefTable == table && (column == "" || fk.RefColumn == column) {
				out = append(out, t.Name()+"."+fk.String())
			}
		}
	}
	return out
}

// TableNames returns the table names in registration order.
func (e *Engine) TableNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, len(e.tables))
	for i, t := range e.tables {
		names[i] = t.Name()
	}
	return names
}

// HasTable reports whether the catalog holds a table called name.
func (e *Engine) HasTable(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lookup(name) != nil
}

// Table returns a detached copy of one table.
func (e *Engine) Table(name string) (core.TableSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table("table", name)
	if err != nil {
		return core.TableSnapshot{}, err
	}
	return t.Snapshot(), nil
}

// ColumnIndex returns the position of a column by name.
func (e *Engine) ColumnIndex(table, column string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table("column index", table)
	if err != nil {
		return -1, err
	}
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return -1, core.Errorf(core.SchemaError, "column index", "column %s does not exist in %s", column, table)
	}
	return idx, nil
}

// Describe lists the columns of a table with their type, primary-key flag
// and referenced column.
func (e *Engine) Describe(name string) (QueryResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table("describe", name)
	if err != nil {
		return QueryResult{}, err
	}

	var data [][]string
	for _, col := range t.Columns() {
		pk := "NO"
		if col.PrimaryKey {
			pk = "YES"
		}
		ref := ""
		if fk, ok := t.ForeignKey(col.Name); ok {
			ref = fk.RefTable + "." + fk.RefColumn
		}
		data = append(data, []string{col.Name, col.Type.String(), pk, ref})
	}

	return QueryResult{
		Table:            name,
		Columns:          []string{"Column", "Type", "PrimaryKey", "References"},
		Data:             data,
		RecordsRead:      len(data),
		ExecutionTimeSec: time.Since(start).Seconds(),
		ExecutionOps:     1,
	}, nil
}

// Select dumps every row of a table with a leading row-position column.
func (e *Engine) Select(name string) (QueryResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table("select", name)
	if err != nil {
		return QueryResult{}, err
	}

	columns := []string{"#"}
	for _, col := range t.Columns() {
		columns = append(columns, col.Name)
	}

	data := make([][]string, 0, t.NumRows())
	for i, row := range t.Scan() {
		data = append(data, append([]string{fmt.Sprint(i)}, formatRow(row)...))
	}

	return QueryResult{
		Table:            name,
		Columns:          columns,
		Data:             data,
		RecordsRead:      len(data),
		ExecutionTimeSec: time.Since(start).Seconds(),
		ExecutionOps:     len(data),
	}, nil
}

// Enumerate returns a detached copy of every table in registration order,
// taken under the engine lock.
func (e *Engine) Enumerate() []core.TableSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]core.TableSnapshot, len(e.tables))
	for i, t := range e.tables {
		out[i] = t.Snapshot()
	}
	return out
}

// Reset drops every table. An open transaction stays open and can restore
// the dropped tables.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}

func (e *Engine) reset() {
	e.tables = nil
	e.integrity.Reset()
	e.logger.Debug("catalog reset")
}

// InsertRow appends a row. The result carries the new row's position.
func (e *Engine) InsertRow(table string, values []any) (CommitResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table("insert", table)
	if err != nil {
		return CommitResult{}, err
	}
	idx, err := t.Insert(values, e.integrity)
	if err != nil {
		return CommitResult{}, err
	}

	res := e.result(start, 1)
	res.RecordsWritten = 1
	res.RowIndex = idx
	return res, nil
}

// UpdateRow replaces one cell, running the same checks as InsertRow.
func (e *Engine) UpdateRow(table string, row, column int, value any) (CommitResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table("update", table)
	if err != nil {
		return CommitResult{}, err
	}
	if err := t.Update(row, column, value, e.integrity); err != nil {
		return CommitResult{}, err
	}

	res := e.result(start, 1)
	res.RecordsWritten = 1
	res.RowIndex = row
	return res, nil
}

// DeleteRow removes a row. Rows after it move down one position. Rows in
// other tables that reference its values are not checked.
func (e *Engine) DeleteRow(table string, row int) (CommitResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table("delete", table)
	if err != nil {
		return CommitResult{}, err
	}
	if err := t.Delete(row); err != nil {
		return CommitResult{}, err
	}

	res := e.result(start, 1)
	res.RecordsDeleted = 1
	res.RowIndex = row
	return res, nil
}

// AddColumn appends a column filled with def.
func (e *Engine) AddColumn(table, name string, kind core.ColumnType, def any) (CommitResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table("add column", table)
	if err != nil {
		return CommitResult{}, err
	}
	if err := t.AddColumn(name, kind, def); err != nil {
		return CommitResult{}, err
	}

	res := e.result(start, t.NumRows()+1)
	res.TablesAltered = 1
	return res, nil
}

// DropColumn removes a column. A foreign key sourced from the column is
// removed with it and reported in the result.
func (e *Engine) DropColumn(table, name string) (CommitResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table("drop column", table)
	if err != nil {
		return CommitResult{}, err
	}
	removed, err := t.DropColumn(name)
	if err != nil {
		return CommitResult{}, err
	}

	res := e.result(start, t.NumRows()+1)
	res.TablesAltered = 1
	var warnings []string
	if removed != nil {
		res.ConstraintsRemoved = 1
		warnings = append(warnings, "removed foreign key "+table+"."+removed.String())
		e.logger.Info("foreign key removed with column", zap.String("table", table), zap.Stringer("foreign_key", removed))
	}
	if dangling := e.referencing(table, name); len(dangling) > 0 {
		warnings = append(warnings, "dangling foreign keys: "+strings.Join(dangling, ", "))
	}
	res.Warning = strings.Join(warnings, "; ")
	return res, nil
}

// RenameColumn renames a column and the constraint sourced from it.
// Constraints in other tables that reference the old name are left dangling.
func (e *Engine) RenameColumn(table, oldName, newName string) (CommitResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table("rename column", table)
	if err != nil {
		return CommitResult{}, err
	}
	if err := t.RenameColumn(oldName, newName); err != nil {
		return CommitResult{}, err
	}

	res := e.result(start, 1)
	res.TablesAltered = 1
	if dangling := e.referencing(table, oldName); len(dangling) > 0 && oldName != newName {
		res.Warning = "dangling foreign keys: " + strings.Join(dangling, ", ")
	}
	return res, nil
}

// TransformTable rebuilds a table under a new column list and replaces the
// catalog entry in place. On failure the original table is kept.
func (e *Engine) TransformTable(table string, columns []core.Column) (CommitResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(table)
	if i < 0 {
		return CommitResult{}, core.Errorf(core.CatalogError, "transform", "table %s does not exist", table)
	}
	old := e.tables[i]
	next, err := old.Transform(columns)
	if err != nil {
		return CommitResult{}, err
	}
	e.tables[i] = next
	e.integrity.Reset()

	res := e.result(start, next.NumRows()+1)
	res.TablesAltered = 1
	if lost := len(old.ForeignKeys()) - len(next.ForeignKeys()); lost > 0 {
		res.ConstraintsRemoved = lost
		res.Warning = fmt.Sprintf("%d foreign key(s) dropped by transform", lost)
	}
	e.logger.Debug("table transformed", zap.String("table", table), zap.Int("columns", len(columns)))
	return res, nil
}

// SetPrimaryKey sets or clears the primary-key flag of a column.
func (e *Engine) SetPrimaryKey(table, column string, on bool) (CommitResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table("set primary key", table)
	if err != nil {
		return CommitResult{}, err
	}
	if err := t.SetPrimaryKey(column, on); err != nil {
		return CommitResult{}, err
	}

	res := e.result(start, t.NumRows()+1)
	res.TablesAltered = 1
	return res, nil
}

// AddForeignKey adds a constraint. Existing rows that violate it are counted
// in the result warning but do not fail the call.
func (e *Engine) AddForeignKey(table, column, refTable, refColumn string) (CommitResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table("add foreign key", table)
	if err != nil {
		return CommitResult{}, err
	}
	if err := e.integrity.AddConstraint(t, column, refTable, refColumn); err != nil {
		return CommitResult{}, err
	}

	res := e.result(start, 1)
	res.ConstraintsAdded = 1
	violating := 0
	for _, v := range e.integrity.ValidateAll(t).Violations {
		if v.ForeignKey.Column == column {
			violating++
		}
	}
	if violating > 0 {
		res.Warning = fmt.Sprintf("%d existing row(s) violate %s.%s", violating, table, column)
	}
	return res, nil
}

// RemoveForeignKey drops the constraint sourced from table.column.
func (e *Engine) RemoveForeignKey(table, column string) (CommitResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table("remove foreign key", table)
	if err != nil {
		return CommitResult{}, err
	}
	if _, err := e.integrity.RemoveConstraint(t, column); err != nil {
		return CommitResult{}, err
	}

	res := e.result(start, 1)
	res.ConstraintsRemoved = 1
	return res, nil
}

// ValidateForeignKeys checks every constraint of one table against the
// current data.
func (e *Engine) ValidateForeignKeys(table string) (ValidationReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table("validate", table)
	if err != nil {
		return ValidationReport{}, err
	}
	return e.integrity.ValidateAll(t), nil
}

// ValidateAll validates every table in registration order.
func (e *Engine) ValidateAll() []ValidationReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	reports := make([]ValidationReport, len(e.tables))
	for i, t := range e.tables {
		reports[i] = e.integrity.ValidateAll(t)
	}
	return reports
}
