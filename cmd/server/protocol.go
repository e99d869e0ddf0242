// Package main provides a TCP server for TableDB.
//
// Clients send one JSON request per line and receive one JSON response per
// line:
//
//	{"op": "insert", "table": "Employees", "values": [1, "Alice", 1, 80000]}
//	{"success": true, "type": "commit", "result": {"records_written": 1, ...}}
//
// The plain-text lines "AUTH JWT <token>", "quit" and "exit" are also
// accepted.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nickyhof/TableDB/core"
	"github.com/nickyhof/TableDB/db"
	"github.com/nickyhof/TableDB/ps"
)

// Request is one engine operation. Which fields apply depends on Op.
type Request struct {
	Op        string          `json:"op"`
	Table     string          `json:"table,omitempty"`
	Columns   []ColumnSpec    `json:"columns,omitempty"`
	Values    []any           `json:"values,omitempty"`
	Row       *int            `json:"row,omitempty"`
	Column    string          `json:"column,omitempty"`
	NewName   string          `json:"new_name,omitempty"`
	Type      string          `json:"type,omitempty"`
	Value     any             `json:"value,omitempty"`
	On        *bool           `json:"on,omitempty"`
	RefTable  string          `json:"ref_table,omitempty"`
	RefColumn string          `json:"ref_column,omitempty"`
	Document  json.RawMessage `json:"document,omitempty"`
	Message   string          `json:"message,omitempty"`
	Limit     int             `json:"limit,omitempty"`
}

// ColumnSpec declares a column in create_table and transform requests.
type ColumnSpec struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
}

func (req Request) columns() ([]core.Column, error) {
	if len(req.Columns) == 0 {
		return nil, errors.New("columns are required")
	}
	out := make([]core.Column, len(req.Columns))
	for i, spec := range req.Columns {
		kind, err := core.ParseColumnType(spec.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", spec.Name, err)
		}
		out[i] = core.Column{Name: spec.Name, Type: kind, PrimaryKey: spec.PrimaryKey}
	}
	return out, nil
}

func (req Request) row() (int, error) {
	if req.Row == nil {
		return 0, errors.New("row is required")
	}
	return *req.Row, nil
}

// Response wraps every reply. Kind carries the engine error kind, e.g.
// "ReferentialIntegrityError".
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	Type    string          `json:"type,omitempty"` // query, commit, validation, export, import, revision, history or auth
	Result  json.RawMessage `json:"result,omitempty"`
}

// QueryResponse contains tabular query results.
type QueryResponse struct {
	Columns     []string   `json:"columns"`
	Data        [][]string `json:"data"`
	RecordsRead int        `json:"records_read"`
	TimeMs      float64    `json:"time_ms"`
}

// CommitResponse contains mutation operation results.
type CommitResponse struct {
	TransactionId      string  `json:"transaction_id,omitempty"`
	TablesCreated      int     `json:"tables_created,omitempty"`
	TablesDeleted      int     `json:"tables_deleted,omitempty"`
	TablesAltered      int     `json:"tables_altered,omitempty"`
	RecordsWritten     int     `json:"records_written,omitempty"`
	RecordsDeleted     int     `json:"records_deleted,omitempty"`
	ConstraintsAdded   int     `json:"constraints_added,omitempty"`
	ConstraintsRemoved int     `json:"constraints_removed,omitempty"`
	RowIndex           *int    `json:"row_index,omitempty"`
	Warning            string  `json:"warning,omitempty"`
	TimeMs             float64 `json:"time_ms"`
}

type ValidationResponse struct {
	Tables []TableValidation `json:"tables"`
}

type TableValidation struct {
	Table      string              `json:"table"`
	Valid      bool                `json:"valid"`
	Rows       []int               `json:"rows"`
	Violations []ViolationResponse `json:"violations,omitempty"`
	Dangling   []string            `json:"dangling,omitempty"`
}

type ViolationResponse struct {
	Row        int    `json:"row"`
	Constraint string `json:"constraint"`
	Value      string `json:"value"`
}

// LoadResponse reports an import.
type LoadResponse struct {
	TablesCreated       int      `json:"tables_created"`
	RowsLoaded          int      `json:"rows_loaded"`
	PrimaryKeysRestored int      `json:"primary_keys_restored"`
	ForeignKeysRestored int      `json:"foreign_keys_restored"`
	Failures            []string `json:"failures,omitempty"`
}

type RevisionResponse struct {
	Id      string    `json:"id"`
	Author  string    `json:"author"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

type HistoryResponse struct {
	Revisions []RevisionResponse `json:"revisions"`
}

// AuthResponse contains authentication result.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity,omitempty"`
	ExpiresIn     int    `json:"expires_in,omitempty"`
}

func newQueryResponse(r db.QueryResult) QueryResponse {
	data := r.Data
	if data == nil {
		data = [][]string{}
	}
	return QueryResponse{
		Columns:     r.Columns,
		Data:        data,
		RecordsRead: r.RecordsRead,
		TimeMs:      r.ExecutionTimeSec * 1000,
	}
}

func newCommitResponse(r db.CommitResult, inserted bool) CommitResponse {
	cr := CommitResponse{
		TransactionId:      r.TransactionId,
		TablesCreated:      r.TablesCreated,
		TablesDeleted:      r.TablesDeleted,
		TablesAltered:      r.TablesAltered,
		RecordsWritten:     r.RecordsWritten,
		RecordsDeleted:     r.RecordsDeleted,
		ConstraintsAdded:   r.ConstraintsAdded,
		ConstraintsRemoved: r.ConstraintsRemoved,
		Warning:            r.Warning,
		TimeMs:             r.ExecutionTimeSec * 1000,
	}
	if inserted {
		idx := r.RowIndex
		cr.RowIndex = &idx
	}
	return cr
}

func newTableValidation(r db.ValidationReport) TableValidation {
	tv := TableValidation{
		Table: r.Table,
		Valid: r.Valid(),
		Rows:  r.Rows(),
	}
	for _, v := range r.Violations {
		tv.Violations = append(tv.Violations, ViolationResponse{
			Row:        v.Row,
			Constraint: v.ForeignKey.String(),
			Value:      v.Value.String(),
		})
	}
	for _, d := range r.Dangling {
		tv.Dangling = append(tv.Dangling, d.ForeignKey.String()+": "+d.Reason)
	}
	return tv
}

func newLoadResponse(r db.LoadReport) LoadResponse {
	lr := LoadResponse{
		TablesCreated:       r.TablesCreated,
		RowsLoaded:          r.RowsLoaded,
		PrimaryKeysRestored: r.PrimaryKeysRestored,
		ForeignKeysRestored: r.ForeignKeysRestored,
	}
	for _, f := range r.Failures {
		lr.Failures = append(lr.Failures, f.String())
	}
	return lr
}

func newRevisionResponse(r ps.Revision) RevisionResponse {
	return RevisionResponse{Id: r.Id, Author: r.Author, Message: r.Message, When: r.When}
}

// success marshals result into a successful Response of the given type.
func success(kind string, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return failure(err)
	}
	return Response{Success: true, Type: kind, Result: data}
}

func failure(err error) Response {
	resp := Response{Success: false, Error: err.Error()}
	if kind := core.KindOf(err); kind != core.UnknownError {
		resp.Kind = kind.String()
	}
	return resp
}

// EncodeResponse serializes a Response to JSON with a newline.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeRequest parses a JSON request. Numbers stay json.Number so large
// integers keep their precision; unknown fields are rejected.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return Request{}, fmt.Errorf("invalid request: %w", err)
	}
	if req.Op == "" {
		return Request{}, errors.New("invalid request: op is required")
	}
	return req, nil
}
