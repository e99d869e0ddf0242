package TableDB

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nickyhof/TableDB/core"
	"github.com/nickyhof/TableDB/db"
	"github.com/nickyhof/TableDB/ps"
)

var testIdentity = core.Identity{Name: "test", Email: "test@test.com"}

// TestFunc is the signature for test functions that work with any persistence
type TestFunc func(t *testing.T, instance *Instance)

// runWithBothPersistence runs a test function with both memory and file persistence
func runWithBothPersistence(t *testing.T, testFunc TestFunc) {
	t.Run("Memory", func(t *testing.T) {
		persistence, err := ps.NewMemoryPersistence()
		require.NoError(t, err)
		testFunc(t, Open(persistence, WithLogger(zaptest.NewLogger(t))))
	})

	t.Run("File", func(t *testing.T) {
		persistence, err := ps.NewFilePersistence(t.TempDir(), nil)
		require.NoError(t, err)
		testFunc(t, Open(persistence, WithLogger(zaptest.NewLogger(t))))
	})
}

func seedCompany(t *testing.T, engine *db.Engine) {
	t.Helper()
	_, err := engine.CreateTable("Departments", []core.Column{
		{Name: "id", Type: core.IntType},
		{Name: "name", Type: core.TextType},
	})
	require.NoError(t, err)
	_, err = engine.CreateTable("Employees", []core.Column{
		{Name: "id", Type: core.IntType},
		{Name: "name", Type: core.TextType},
		{Name: "department_id", Type: core.IntType},
		{Name: "salary", Type: core.FloatType},
	})
	require.NoError(t, err)

	_, err = engine.SetPrimaryKey("Departments", "id", true)
	require.NoError(t, err)
	_, err = engine.AddForeignKey("Employees", "department_id", "Departments", "id")
	require.NoError(t, err)

	for _, row := range [][]any{{1, "Engineering"}, {2, "Sales"}} {
		_, err := engine.InsertRow("Departments", row)
		require.NoError(t, err)
	}
	for _, row := range [][]any{
		{1, "Alice", 1, 80000.0},
		{2, "Bob", 1, 75000},
		{3, "Charlie", 2, "60000.5"},
	} {
		_, err := engine.InsertRow("Employees", row)
		require.NoError(t, err)
	}
}

// TestIntegrationWorkflow tests a complete database workflow
func TestIntegrationWorkflow(t *testing.T) {
	runWithBothPersistence(t, func(t *testing.T, instance *Instance) {
		engine := instance.Engine
		seedCompany(t, engine)

		_, err := engine.InsertRow("Employees", []any{4, "Diana", 9, 1.0})
		assert.ErrorIs(t, err, core.ErrReferentialIntegrity)

		_, err = engine.InsertRow("Departments", []any{2, "Duplicate"})
		assert.ErrorIs(t, err, core.ErrRow)

		_, err = engine.Begin()
		require.NoError(t, err)
		_, err = engine.DeleteRow("Employees", 0)
		require.NoError(t, err)
		_, err = engine.DropTable("Departments")
		require.NoError(t, err)
		_, err = engine.Rollback()
		require.NoError(t, err)

		employees, err := engine.Table("Employees")
		require.NoError(t, err)
		require.Len(t, employees.Rows, 3)
		assert.Equal(t, core.Text("Alice"), employees.Rows[0][1])
		assert.Equal(t, core.Float(60000.5), employees.Rows[2][3])
		assert.True(t, engine.HasTable("Departments"))

		for _, report := range engine.ValidateAll() {
			assert.True(t, report.Valid(), "table %s", report.Table)
		}

		rev, err := instance.Backup(testIdentity, "seed")
		require.NoError(t, err)
		assert.Equal(t, "seed", rev.Message)

		_, err = engine.UpdateRow("Employees", 0, 3, 99999)
		require.NoError(t, err)

		report, latest, err := instance.RestoreLatest()
		require.NoError(t, err)
		assert.True(t, report.OK())
		assert.Equal(t, rev.Id, latest.Id)

		value, err := engine.Table("Employees")
		require.NoError(t, err)
		assert.Equal(t, core.Float(80000), value.Rows[0][3])
	})
}

func TestExportImportIsIdempotent(t *testing.T) {
	instance := Open(nil)
	seedCompany(t, instance.Engine)

	first, err := instance.Export()
	require.NoError(t, err)

	report, err := instance.Import(first)
	require.NoError(t, err)
	assert.True(t, report.OK(), "failures: %v", report.Failures)
	assert.Equal(t, 2, report.TablesCreated)
	assert.Equal(t, 5, report.RowsLoaded)
	assert.Equal(t, 1, report.PrimaryKeysRestored)
	assert.Equal(t, 1, report.ForeignKeysRestored)

	second, err := instance.Export()
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestImportReplacesCatalog(t *testing.T) {
	instance := Open(nil)
	_, err := instance.Engine.CreateTable("Scratch", []core.Column{{Name: "x", Type: core.IntType}})
	require.NoError(t, err)

	other := Open(nil)
	seedCompany(t, other.Engine)
	data, err := other.Export()
	require.NoError(t, err)

	_, err = instance.Import(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Departments", "Employees"}, instance.Engine.TableNames())
}

func TestImportContinuesPastFailures(t *testing.T) {
	doc := `{
  "tables": [
    {
      "name": "Employees",
      "columns": [
        {"name": "id", "type": 0, "is_primary_key": 1, "is_foreign_key": 0},
        {"name": "project_id", "type": 0, "is_primary_key": 0, "is_foreign_key": 1}
      ],
      "rows": [[1, 7], [1, 8]],
      "foreign_keys": [
        {"column": "project_id", "referenced_table": "Projects", "referenced_column": "id"}
      ]
    }
  ]
}`
	instance := Open(nil)
	report, err := instance.Import([]byte(doc))
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, 1, report.TablesCreated)
	assert.Equal(t, 2, report.RowsLoaded)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, "primary key id", report.Failures[0].Stage)
	assert.Equal(t, "foreign key project_id -> Projects.id", report.Failures[1].Stage)

	employees, err := instance.Engine.Table("Employees")
	require.NoError(t, err)
	assert.Empty(t, employees.ForeignKeys)
}

func TestImportRejectsMalformedDocument(t *testing.T) {
	instance := Open(nil)
	seedCompany(t, instance.Engine)

	_, err := instance.Import([]byte(`{"tables": [{"name": "T", "columns": [{"name": "a", "type": 7}]}]}`))
	assert.Error(t, err)
	assert.Len(t, instance.Engine.TableNames(), 2, "a rejected document leaves the catalog alone")
}

func TestExportToAndImportFromFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "company.json")

	source := Open(nil)
	seedCompany(t, source.Engine)
	require.NoError(t, source.ExportTo(ctx, path, nil))

	target := Open(nil)
	report, err := target.ImportFrom(ctx, "file://"+path, nil)
	require.NoError(t, err)
	assert.True(t, report.OK())

	want, err := source.Export()
	require.NoError(t, err)
	got, err := target.Export()
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestImportFromMissingFile(t *testing.T) {
	_, err := Open(nil).ImportFrom(context.Background(), filepath.Join(t.TempDir(), "none.json"), nil)
	assert.Error(t, err)
}

func TestRestoreRevisionAndTag(t *testing.T) {
	runWithBothPersistence(t, func(t *testing.T, instance *Instance) {
		engine := instance.Engine
		seedCompany(t, engine)

		first, err := instance.Backup(testIdentity, "three employees")
		require.NoError(t, err)
		require.NoError(t, instance.Persistence.Tag("v1", &first))

		_, err = engine.DeleteRow("Employees", 2)
		require.NoError(t, err)
		_, err = instance.Backup(testIdentity, "two employees")
		require.NoError(t, err)

		history, err := instance.Persistence.History(0)
		require.NoError(t, err)
		assert.Len(t, history, 2)

		_, err = instance.RestoreRevision(first.Id)
		require.NoError(t, err)
		employees, err := engine.Table("Employees")
		require.NoError(t, err)
		assert.Len(t, employees.Rows, 3)

		_, _, err = instance.RestoreLatest()
		require.NoError(t, err)
		employees, err = engine.Table("Employees")
		require.NoError(t, err)
		assert.Len(t, employees.Rows, 2)

		_, tagged, err := instance.RestoreTag("v1")
		require.NoError(t, err)
		assert.Equal(t, first.Id, tagged.Id)
		employees, err = engine.Table("Employees")
		require.NoError(t, err)
		assert.Len(t, employees.Rows, 3)
	})
}

func TestArchiveOperationsWithoutPersistence(t *testing.T) {
	instance := Open(nil)

	_, err := instance.Backup(testIdentity, "x")
	assert.ErrorIs(t, err, ErrNoArchive)
	_, _, err = instance.RestoreLatest()
	assert.ErrorIs(t, err, ErrNoArchive)
	_, err = instance.RestoreRevision("abc")
	assert.ErrorIs(t, err, ErrNoArchive)
	_, _, err = instance.RestoreTag("v1")
	assert.ErrorIs(t, err, ErrNoArchive)
}

func TestBackupSchedulerUsesEngine(t *testing.T) {
	persistence, err := ps.NewMemoryPersistence()
	require.NoError(t, err)
	instance := Open(persistence)
	seedCompany(t, instance.Engine)

	dir := t.TempDir()
	scheduler := instance.NewBackupScheduler(ps.BackupOptions{
		Dir:      dir,
		Archive:  persistence,
		Identity: testIdentity,
		Now:      func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) },
	})

	result, err := scheduler.BackupNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "backup_20260301_093000.json"), result.Path)

	restored := Open(persistence)
	report, _, err := restored.RestoreLatest()
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, instance.Engine.Enumerate(), restored.Engine.Enumerate())
}

func TestImportIsAtomicForConcurrentExports(t *testing.T) {
	instance := Open(nil)
	seedCompany(t, instance.Engine)
	doc, err := instance.Export()
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		done    atomic.Bool
		partial atomic.Int64
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		for !done.Load() {
			tables := instance.Engine.Enumerate()
			if len(tables) != 2 || len(tables[1].ForeignKeys) != 1 {
				partial.Add(1)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for !done.Load() {
			_, _ = instance.Engine.InsertRow("Employees", []any{99, "Temp", 1, 1.5})
			_, _ = instance.Export()
		}
	}()

	for range 200 {
		report, err := instance.Import(doc)
		require.NoError(t, err)
		require.True(t, report.OK(), "%v", report.Failures)
	}
	done.Store(true)
	wg.Wait()

	assert.Zero(t, partial.Load())
	exported, err := instance.Export()
	require.NoError(t, err)
	assert.NotEmpty(t, exported)
}
