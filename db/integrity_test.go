package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/TableDB/core"
)

func TestAddForeignKeyRejects(t *testing.T) {
	engine := setupTestEngine(t)

	cases := []struct {
		name                         string
		table, column, ref, refColum string
	}{
		{"missing column", "Employees", "nope", "Departments", "id"},
		{"missing table", "Employees", "id", "Nope", "id"},
		{"missing referenced column", "Employees", "id", "Departments", "nope"},
		{"duplicate", "Employees", "department_id", "Departments", "id"},
		{"type mismatch", "Employees", "id", "Departments", "name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.AddForeignKey(tc.table, tc.column, tc.ref, tc.refColum)
			requireKind(t, err, core.ReferentialIntegrityError)
		})
	}

	snap, _ := engine.Table("Employees")
	assert.Len(t, snap.ForeignKeys, 1)
	assert.False(t, snap.Columns[0].ForeignKey)
}

func TestAddForeignKeyWarnsAboutExistingViolations(t *testing.T) {
	engine := NewEngine()
	_, _ = engine.CreateTable("A", []core.Column{{Name: "id", Type: core.IntType}})
	_, _ = engine.CreateTable("B", []core.Column{{Name: "a_id", Type: core.IntType}})
	_, _ = engine.InsertRow("B", []any{5})

	res, err := engine.AddForeignKey("B", "a_id", "A", "id")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ConstraintsAdded)
	assert.Contains(t, res.Warning, "1 existing row(s)")
}

func TestRemoveForeignKey(t *testing.T) {
	engine := setupTestEngine(t)

	_, err := engine.RemoveForeignKey("Employees", "department_id")
	require.NoError(t, err)
	_, err = engine.RemoveForeignKey("Employees", "department_id")
	requireKind(t, err, core.ReferentialIntegrityError)

	_, err = engine.InsertRow("Employees", []any{1, "John", 999, 1.0})
	assert.NoError(t, err)
}

func TestValidateAllReportsViolations(t *testing.T) {
	engine := NewEngine()
	_, _ = engine.CreateTable("A", []core.Column{{Name: "id", Type: core.IntType}})
	_, _ = engine.CreateTable("B", []core.Column{{Name: "a_id", Type: core.IntType}})
	_, _ = engine.InsertRow("A", []any{1})
	for _, v := range []int{1, 2, 0, 3, 1} {
		_, _ = engine.InsertRow("B", []any{v})
	}
	_, err := engine.AddForeignKey("B", "a_id", "A", "id")
	require.NoError(t, err)

	report, err := engine.ValidateForeignKeys("B")
	require.NoError(t, err)
	assert.False(t, report.Valid())
	assert.Equal(t, []int{1, 3}, report.Rows())
	assert.Empty(t, report.Dangling)

	_, _ = engine.InsertRow("A", []any{2})
	_, _ = engine.InsertRow("A", []any{3})
	report, _ = engine.ValidateForeignKeys("B")
	assert.True(t, report.Valid())
}

func TestDropTableLeavesDanglingConstraint(t *testing.T) {
	engine := setupTestEngine(t)
	_, _ = engine.InsertRow("Departments", []any{1, "IT"})
	_, _ = engine.InsertRow("Employees", []any{1, "John", 1, 1.0})
	_, _ = engine.InsertRow("Employees", []any{2, "Jane", 0, 1.0})

	res, err := engine.DropTable("Departments")
	require.NoError(t, err)
	assert.Contains(t, res.Warning, "Employees.department_id -> Departments.id")

	report, err := engine.ValidateForeignKeys("Employees")
	require.NoError(t, err)
	require.Len(t, report.Dangling, 1)
	assert.Equal(t, "Departments", report.Dangling[0].ForeignKey.RefTable)
	assert.Equal(t, []int{0}, report.Rows())

	snap, _ := engine.Table("Employees")
	assert.Len(t, snap.ForeignKeys, 1, "constraint stays until removed")

	_, err = engine.InsertRow("Employees", []any{3, "Max", 1, 1.0})
	requireKind(t, err, core.ReferentialIntegrityError)

	_, err = engine.CreateTable("Departments", []core.Column{{Name: "id", Type: core.IntType}})
	require.NoError(t, err)
	_, _ = engine.InsertRow("Departments", []any{1})

	report, _ = engine.ValidateForeignKeys("Employees")
	assert.True(t, report.Valid(), "recreated table resolves by name")
}

func TestSelfReference(t *testing.T) {
	engine := NewEngine()
	_, _ = engine.CreateTable("Nodes", []core.Column{
		{Name: "id", Type: core.IntType},
		{Name: "parent", Type: core.IntType},
	})
	_, err := engine.AddForeignKey("Nodes", "parent", "Nodes", "id")
	require.NoError(t, err)

	_, err = engine.InsertRow("Nodes", []any{1, 0})
	require.NoError(t, err)
	_, err = engine.InsertRow("Nodes", []any{2, 1})
	require.NoError(t, err)
	_, err = engine.InsertRow("Nodes", []any{3, 3})
	requireKind(t, err, core.ReferentialIntegrityError)
}

func TestValidationReportRows(t *testing.T) {
	report := ValidationReport{Violations: []Violation{{Row: 4}, {Row: 1}, {Row: 4}}}
	assert.Equal(t, []int{1, 4}, report.Rows())
}
