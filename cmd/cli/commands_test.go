package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/TableDB/ps"
)

func TestImportHistoryDescribe(t *testing.T) {
	archive := t.TempDir()
	doc, _ := writeCompany(t, t.TempDir())

	out, err := runCLI(t, "-d", archive, "import", doc, "-m", "initial load")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 table(s), 4 row(s), 1 foreign key(s)")
	assert.Contains(t, out, "Revision ")

	out, err = runCLI(t, "-d", archive, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "initial load")
	assert.Contains(t, out, "TableDB <tabledb@localhost>")

	out, err = runCLI(t, "-d", archive, "describe", "-t", "Employees")
	require.NoError(t, err)
	assert.Contains(t, out, "department_id")
	assert.Contains(t, out, "Departments.id")
	assert.NotContains(t, out, "Engineering")
}

func TestHistoryJSON(t *testing.T) {
	archive := t.TempDir()
	doc, _ := writeCompany(t, t.TempDir())

	_, err := runCLI(t, "-d", archive, "import", doc)
	require.NoError(t, err)
	_, err = runCLI(t, "-d", archive, "import", doc, "-m", "again")
	require.NoError(t, err)

	out, err := runCLI(t, "-d", archive, "history", "--format", "json", "-n", "1")
	require.NoError(t, err)

	var revisions []revisionJSON
	require.NoError(t, json.Unmarshal([]byte(out), &revisions))
	require.Len(t, revisions, 1)
	assert.Equal(t, "again", revisions[0].Message)
}

func TestHistoryEmptyArchive(t *testing.T) {
	out, err := runCLI(t, "-d", t.TempDir(), "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No revisions")
}

func TestDescribeJSONHasNoRows(t *testing.T) {
	doc, _ := writeCompany(t, t.TempDir())

	out, err := runCLI(t, "describe", doc, "--format", "json")
	require.NoError(t, err)

	var parsed ps.Document
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	require.Len(t, parsed.Tables, 2)
	assert.Empty(t, parsed.Tables[1].Rows)
	assert.Len(t, parsed.Tables[1].ForeignKeys, 1)
}

func TestValidateValidDocument(t *testing.T) {
	doc, _ := writeCompany(t, t.TempDir())

	out, err := runCLI(t, "validate", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Departments")
	assert.Contains(t, out, "✓ Employees")
}

func TestValidateReportsViolations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(violatingDocument), 0644))

	out, err := runCLI(t, "validate", path)
	assert.True(t, errors.Is(err, errInvalid))
	assert.Contains(t, out, "✗ Employees")
	assert.Contains(t, out, "row 1: department_id -> Departments.id has no value 9")

	out, err = runCLI(t, "validate", path, "--format", "json")
	assert.ErrorIs(t, err, errInvalid)

	var results []tableValidation
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.True(t, results[0].Valid)
	assert.False(t, results[1].Valid)
	assert.Equal(t, []int{1}, results[1].Rows)
}

func TestExportRoundTrip(t *testing.T) {
	archive := t.TempDir()
	doc, original := writeCompany(t, t.TempDir())

	_, err := runCLI(t, "-d", archive, "import", doc)
	require.NoError(t, err)

	out, err := runCLI(t, "-d", archive, "export")
	require.NoError(t, err)
	assert.Equal(t, string(original), out)

	target := filepath.Join(t.TempDir(), "out", "copy.json")
	_, err = runCLI(t, "-d", archive, "export", "-o", target)
	require.NoError(t, err)
	written, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, string(original), string(written))
}

func TestRestoreEarlierRevision(t *testing.T) {
	archive := t.TempDir()
	doc, original := writeCompany(t, t.TempDir())
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(violatingDocument), 0644))

	_, err := runCLI(t, "-d", archive, "import", doc)
	require.NoError(t, err)
	_, err = runCLI(t, "-d", archive, "tag", "good")
	require.NoError(t, err)
	_, err = runCLI(t, "-d", archive, "import", bad)
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "good.json")
	_, err = runCLI(t, "-d", archive, "restore", "good", "-o", target)
	require.NoError(t, err)
	written, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, string(original), string(written))

	out, err := runCLI(t, "-d", archive, "restore", "HEAD~1")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored")

	out, err = runCLI(t, "-d", archive, "export")
	require.NoError(t, err)
	assert.Equal(t, string(original), out)

	out, err = runCLI(t, "-d", archive, "history", "--format", "json")
	require.NoError(t, err)
	var revisions []revisionJSON
	require.NoError(t, json.Unmarshal([]byte(out), &revisions))
	require.Len(t, revisions, 3)
	assert.True(t, strings.HasPrefix(revisions[0].Message, "Restore "))
}

func TestExportRevisionFlag(t *testing.T) {
	archive := t.TempDir()
	doc, original := writeCompany(t, t.TempDir())
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(violatingDocument), 0644))

	_, err := runCLI(t, "-d", archive, "import", doc)
	require.NoError(t, err)
	_, err = runCLI(t, "-d", archive, "import", bad)
	require.NoError(t, err)

	out, err := runCLI(t, "-d", archive, "export", "-r", "HEAD~1")
	require.NoError(t, err)
	assert.Equal(t, string(original), out)
}

func TestTagUnknownRevision(t *testing.T) {
	_, err := runCLI(t, "-d", t.TempDir(), "tag", "v1")
	assert.Error(t, err)
}

func TestBackupCommand(t *testing.T) {
	doc, _ := writeCompany(t, t.TempDir())
	dir := t.TempDir()

	out, err := runCLI(t, "backup", doc, "--dir", dir, "--keep", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote ")

	names, err := ps.ListBackups(dir)
	require.NoError(t, err)
	require.Len(t, names, 1)

	data, err := os.ReadFile(filepath.Join(dir, names[0]))
	require.NoError(t, err)
	tables, err := ps.Unmarshal(data)
	require.NoError(t, err)
	assert.Len(t, tables, 2)
}

func TestImportMissingFile(t *testing.T) {
	_, err := runCLI(t, "import", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestPushWithoutRevisions(t *testing.T) {
	_, err := runCLI(t, "-d", t.TempDir(), "push")
	assert.ErrorIs(t, err, ps.ErrNoRevisions)
}

func TestPushRegistersRemote(t *testing.T) {
	archive := t.TempDir()
	doc, _ := writeCompany(t, t.TempDir())
	_, err := runCLI(t, "-d", archive, "import", doc)
	require.NoError(t, err)

	missing := filepath.Join(t.TempDir(), "missing.git")
	_, err = runCLI(t, "-d", archive, "push", "--remote", "backup", "--url", missing)
	require.Error(t, err)

	persistence, err := ps.NewFilePersistence(archive, nil)
	require.NoError(t, err)
	remotes, err := persistence.ListRemotes()
	require.NoError(t, err)
	require.Len(t, remotes, 1)
	assert.Equal(t, "backup", remotes[0].Name)
	assert.Equal(t, []string{missing}, remotes[0].URLs)
}
