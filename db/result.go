package db

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nickyhof/TableDB/core"
)

type ResultType int

const (
	QueryResultType ResultType = iota
	CommitResultType
)

type Result interface {
	Type() ResultType
	Display()
	Render(w io.Writer)
}

type QueryResult struct {
	Table            string
	Columns          []string
	Data             [][]string
	RecordsRead      int
	ExecutionTimeSec float64
	ExecutionOps     int
}

// CommitResult describes the effect of a mutating engine call.
type CommitResult struct {
	TransactionId      string
	TablesCreated      int
	TablesDeleted      int
	TablesAltered      int
	RecordsWritten     int
	RecordsDeleted     int
	ConstraintsAdded   int
	ConstraintsRemoved int
	// RowIndex is the position of an inserted row. It is only valid until
	// the next delete on the same table.
	RowIndex         int
	Warning          string
	ExecutionTimeSec float64
	ExecutionOps     int
}

func (result QueryResult) Type() ResultType {
	return QueryResultType
}

func (result CommitResult) Type() ResultType {
	return CommitResultType
}

func formatDuration(secs float64) string {
	switch {
	case secs < 0.001:
		return "<1ms"
	case secs < 0.01:
		return fmt.Sprintf("%dms", int(secs*1000))
	case secs < 1:
		ms := secs * 1000
		if ms < 10 {
			return fmt.Sprintf("%.1fms", ms)
		}
		return fmt.Sprintf("%dms", int(ms))
	case secs < 60:
		if secs < 10 {
			return fmt.Sprintf("%.1fs", secs)
		}
		return fmt.Sprintf("%ds", int(secs))
	default:
		mins := int(secs / 60)
		rest := int(secs) % 60
		if rest == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm%ds", mins, rest)
	}
}

func throughput(secs float64, ops int) string {
	if secs <= 0 || ops <= 0 {
		return ""
	}
	rate := float64(ops) / secs
	switch {
	case rate >= 1000000:
		return fmt.Sprintf(", %.1fM ops/s", rate/1000000)
	case rate >= 1000:
		return fmt.Sprintf(", %.1fK ops/s", rate/1000)
	default:
		return fmt.Sprintf(", %.0f ops/s", rate)
	}
}

func (result QueryResult) ExecutionTime() string {
	return formatDuration(result.ExecutionTimeSec)
}

func (result CommitResult) ExecutionTime() string {
	return formatDuration(result.ExecutionTimeSec)
}

func (result QueryResult) Display() {
	result.Render(os.Stdout)
}

func (result QueryResult) Render(w io.Writer) {
	if len(result.Columns) > 0 {
		grid := NewTextTable(w)
		grid.Header(result.Columns)
		grid.Bulk(result.Data)
		grid.Render()
	}

	fmt.Fprintf(w, "%d rows (%s%s)\n", result.RecordsRead, result.ExecutionTime(), throughput(result.ExecutionTimeSec, result.ExecutionOps))
}

func (result CommitResult) Display() {
	result.Render(os.Stdout)
}

// Summary lists the non-zero counters, e.g. "1 table(s) created".
func (result CommitResult) Summary() string {
	var parts []string
	add := func(n int, what string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, what))
		}
	}
	add(result.TablesCreated, "table(s) created")
	add(result.TablesDeleted, "table(s) deleted")
	add(result.TablesAltered, "table(s) altered")
	add(result.RecordsWritten, "record(s) written")
	add(result.RecordsDeleted, "record(s) deleted")
	add(result.ConstraintsAdded, "constraint(s) added")
	add(result.ConstraintsRemoved, "constraint(s) removed")

	if len(parts) == 0 {
		return "OK"
	}
	return strings.Join(parts, ", ")
}

func (result CommitResult) Render(w io.Writer) {
	if result.Warning != "" {
		fmt.Fprintf(w, "warning: %s\n", result.Warning)
	}
	fmt.Fprintf(w, "%s (%s%s)\n", result.Summary(), result.ExecutionTime(), throughput(result.ExecutionTimeSec, result.ExecutionOps))
}

func formatRow(row core.Row) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = v.String()
	}
	return out
}
