package db

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	cases := map[float64]string{
		0.0005: "<1ms",
		0.005:  "5ms",
		0.25:   "250ms",
		2.5:    "2.5s",
		42:     "42s",
		120:    "2m",
		125:    "2m5s",
	}
	for secs, want := range cases {
		assert.Equal(t, want, formatDuration(secs), "%v", secs)
	}
}

func TestCommitResultSummary(t *testing.T) {
	assert.Equal(t, "OK", CommitResult{}.Summary())
	assert.Equal(t, "1 table(s) created, 2 record(s) written",
		CommitResult{TablesCreated: 1, RecordsWritten: 2}.Summary())
}

func TestCommitResultRenderShowsWarning(t *testing.T) {
	var buf bytes.Buffer
	CommitResult{RecordsDeleted: 1, Warning: "careful"}.Render(&buf)
	assert.Equal(t, "warning: careful\n1 record(s) deleted (<1ms)\n", buf.String())
}

func TestQueryResultRender(t *testing.T) {
	var buf bytes.Buffer
	QueryResult{
		Columns:     []string{"id", "name"},
		Data:        [][]string{{"1", "Zoë"}},
		RecordsRead: 1,
	}.Render(&buf)

	expected := "" +
		"+----+------+\n" +
		"| id | name |\n" +
		"+----+------+\n" +
		"| 1  | Zoë  |\n" +
		"+----+------+\n" +
		"1 rows (<1ms)\n"
	assert.Equal(t, expected, buf.String())
}
