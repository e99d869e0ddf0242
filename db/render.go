package db

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// TextTable renders rows as a boxed plain-text grid.
type TextTable struct {
	writer  io.Writer
	headers []string
	rows    [][]string
}

func NewTextTable(w io.Writer) *TextTable {
	return &TextTable{
		writer: w,
		rows:   make([][]string, 0),
	}
}

func (t *TextTable) Header(headers []string) {
	t.headers = headers
}

func (t *TextTable) Row(row []string) {
	t.rows = append(t.rows, row)
}

func (t *TextTable) Bulk(rows [][]string) {
	t.rows = append(t.rows, rows...)
}

// Render writes the grid. Nothing is written for an empty table.
func (t *TextTable) Render() {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return
	}

	widths := t.widths()
	line := separator(widths)

	fmt.Fprintln(t.writer, line)
	if len(t.headers) > 0 {
		fmt.Fprintln(t.writer, formatCells(t.headers, widths))
		fmt.Fprintln(t.writer, line)
	}
	for _, row := range t.rows {
		fmt.Fprintln(t.writer, formatCells(row, widths))
	}
	fmt.Fprintln(t.writer, line)
}

func (t *TextTable) widths() []int {
	n := len(t.headers)
	for _, row := range t.rows {
		n = max(n, len(row))
	}

	widths := make([]int, n)
	for i := range widths {
		widths[i] = 1
	}
	measure := func(cells []string) {
		for i, cell := range cells {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}
	measure(t.headers)
	for _, row := range t.rows {
		measure(row)
	}
	return widths
}

func separator(widths []int) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteByte('+')
	}
	return b.String()
}

func formatCells(cells []string, widths []int) string {
	var b strings.Builder
	b.WriteByte('|')
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		b.WriteByte(' ')
		b.WriteString(cell)
		b.WriteString(strings.Repeat(" ", w-utf8.RuneCountInString(cell)+1))
		b.WriteByte('|')
	}
	return b.String()
}
