package ps

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nickyhof/TableDB/core"
)

// Document is the JSON export format:
//
//	{"tables": [{"name": ..., "columns": [...], "rows": [[...]], "foreign_keys": [...]}]}
//
// Column types are encoded as 0 (int), 1 (float) and 2 (text); flags as 0/1.
type Document struct {
	Tables []TableDocument `json:"tables"`
}

type TableDocument struct {
	Name        string               `json:"name"`
	Columns     []ColumnDocument     `json:"columns"`
	Rows        [][]any              `json:"rows"`
	ForeignKeys []ForeignKeyDocument `json:"foreign_keys"`
}

type ColumnDocument struct {
	Name         string `json:"name"`
	Type         int    `json:"type"`
	IsPrimaryKey int    `json:"is_primary_key"`
	IsForeignKey int    `json:"is_foreign_key"`
}

type ForeignKeyDocument struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NewDocument converts enumerated tables to their document form, keeping
// table, column, row and constraint order.
func NewDocument(tables []core.TableSnapshot) Document {
	doc := Document{Tables: make([]TableDocument, 0, len(tables))}
	for _, t := range tables {
		td := TableDocument{
			Name:        t.Name,
			Columns:     make([]ColumnDocument, 0, len(t.Columns)),
			Rows:        make([][]any, 0, len(t.Rows)),
			ForeignKeys: make([]ForeignKeyDocument, 0, len(t.ForeignKeys)),
		}
		for _, col := range t.Columns {
			td.Columns = append(td.Columns, ColumnDocument{
				Name:         col.Name,
				Type:         int(col.Type),
				IsPrimaryKey: flag(col.PrimaryKey),
				IsForeignKey: flag(col.ForeignKey),
			})
		}
		for _, row := range t.Rows {
			values := make([]any, len(row))
			for i, v := range row {
				values[i] = v.Interface()
			}
			td.Rows = append(td.Rows, values)
		}
		for _, fk := range t.ForeignKeys {
			td.ForeignKeys = append(td.ForeignKeys, ForeignKeyDocument{
				Column:           fk.Column,
				ReferencedTable:  fk.RefTable,
				ReferencedColumn: fk.RefColumn,
			})
		}
		doc.Tables = append(doc.Tables, td)
	}
	return doc
}

// Snapshots converts the document back to tables. Row values are coerced to
// their column's kind; a row of the wrong length or a value that cannot be
// converted makes the document invalid.
func (doc Document) Snapshots() ([]core.TableSnapshot, error) {
	out := make([]core.TableSnapshot, 0, len(doc.Tables))
	for ti, td := range doc.Tables {
		snap := core.TableSnapshot{
			Name:    td.Name,
			Columns: make([]core.Column, len(td.Columns)),
			Rows:    make([]core.Row, 0, len(td.Rows)),
		}

		for i, cd := range td.Columns {
			kind := core.ColumnType(cd.Type)
			if !kind.Valid() {
				return nil, fmt.Errorf("table %d (%s) column %s: unknown type code %d", ti, td.Name, cd.Name, cd.Type)
			}
			snap.Columns[i] = core.Column{
				Name:       cd.Name,
				Type:       kind,
				PrimaryKey: cd.IsPrimaryKey != 0,
				ForeignKey: cd.IsForeignKey != 0,
			}
		}

		for ri, raw := range td.Rows {
			if len(raw) != len(snap.Columns) {
				return nil, fmt.Errorf("table %s row %d: expected %d values, got %d", td.Name, ri, len(snap.Columns), len(raw))
			}
			row := make(core.Row, len(raw))
			for ci, value := range raw {
				v, err := core.Coerce(value, snap.Columns[ci].Type)
				if err != nil {
					return nil, fmt.Errorf("table %s row %d column %s: %w", td.Name, ri, snap.Columns[ci].Name, err)
				}
				row[ci] = v
			}
			snap.Rows = append(snap.Rows, row)
		}

		for _, fd := range td.ForeignKeys {
			snap.ForeignKeys = append(snap.ForeignKeys, core.ForeignKey{
				Column:    fd.Column,
				RefTable:  fd.ReferencedTable,
				RefColumn: fd.ReferencedColumn,
			})
		}
		out = append(out, snap)
	}
	return out, nil
}

// Marshal encodes tables as an indented document.
func Marshal(tables []core.TableSnapshot) ([]byte, error) {
	data, err := json.MarshalIndent(NewDocument(tables), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func Encode(w io.Writer, tables []core.TableSnapshot) error {
	data, err := Marshal(tables)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func Unmarshal(data []byte) ([]core.TableSnapshot, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a document. Numbers are decoded as json.Number so integers
// keep full precision.
func Decode(r io.Reader) ([]core.TableSnapshot, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc.Snapshots()
}
