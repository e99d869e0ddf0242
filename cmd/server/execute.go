package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nickyhof/TableDB"
	"github.com/nickyhof/TableDB/core"
	"github.com/nickyhof/TableDB/db"
)

func (s *Server) execute(req Request, state *ConnectionState) Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	engine := s.instance.Engine
	op := strings.ToLower(req.Op)

	switch op {
	case "tables":
		names := engine.TableNames()
		data := make([][]string, len(names))
		for i, name := range names {
			data[i] = []string{name}
		}
		return success("query", QueryResponse{Columns: []string{"Table"}, Data: data, RecordsRead: len(data)})

	case "describe":
		return query(engine.Describe(req.Table))

	case "select":
		return query(engine.Select(req.Table))

	case "create_table":
		columns, err := req.columns()
		if err != nil {
			return failure(err)
		}
		return commit(s.createTable(req.Table, columns))

	case "drop_table":
		return commit(engine.DropTable(req.Table))

	case "insert":
		result, err := engine.InsertRow(req.Table, req.Values)
		if err != nil {
			return failure(err)
		}
		return success("commit", newCommitResponse(result, true))

	case "update":
		row, err := req.row()
		if err != nil {
			return failure(err)
		}
		column, err := engine.ColumnIndex(req.Table, req.Column)
		if err != nil {
			return failure(err)
		}
		return commit(engine.UpdateRow(req.Table, row, column, req.Value))

	case "delete":
		row, err := req.row()
		if err != nil {
			return failure(err)
		}
		return commit(engine.DeleteRow(req.Table, row))

	case "add_column":
		kind, err := core.ParseColumnType(req.Type)
		if err != nil {
			return failure(err)
		}
		return commit(engine.AddColumn(req.Table, req.Column, kind, req.Value))

	case "drop_column":
		return commit(engine.DropColumn(req.Table, req.Column))

	case "rename_column":
		return commit(engine.RenameColumn(req.Table, req.Column, req.NewName))

	case "transform":
		columns, err := req.columns()
		if err != nil {
			return failure(err)
		}
		return commit(engine.TransformTable(req.Table, columns))

	case "set_primary_key":
		on := req.On == nil || *req.On
		return commit(engine.SetPrimaryKey(req.Table, req.Column, on))

	case "add_foreign_key":
		return commit(engine.AddForeignKey(req.Table, req.Column, req.RefTable, req.RefColumn))

	case "remove_foreign_key":
		return commit(engine.RemoveForeignKey(req.Table, req.Column))

	case "validate":
		var reports []db.ValidationReport
		if req.Table == "" {
			reports = engine.ValidateAll()
		} else {
			report, err := engine.ValidateForeignKeys(req.Table)
			if err != nil {
				return failure(err)
			}
			reports = []db.ValidationReport{report}
		}
		vr := ValidationResponse{Tables: make([]TableValidation, len(reports))}
		for i, r := range reports {
			vr.Tables[i] = newTableValidation(r)
		}
		return success("validation", vr)

	case "begin":
		result, err := engine.Begin()
		if err != nil {
			return failure(err)
		}
		state.transaction = result.TransactionId
		return success("commit", newCommitResponse(result, false))

	case "commit":
		state.transaction = ""
		return commit(engine.Commit())

	case "rollback":
		state.transaction = ""
		return commit(engine.Rollback())

	case "export":
		data, err := s.instance.Export()
		if err != nil {
			return failure(err)
		}
		return Response{Success: true, Type: "export", Result: data}

	case "import":
		if len(req.Document) == 0 {
			return failure(errors.New("document is required"))
		}
		report, err := s.instance.Import(req.Document)
		if err != nil {
			return failure(err)
		}
		return success("import", newLoadResponse(report))

	case "backup":
		message := req.Message
		if message == "" {
			message = "Backup"
		}
		rev, err := s.instance.Backup(s.identityFor(state), message)
		if err != nil {
			return failure(err)
		}
		return success("revision", newRevisionResponse(rev))

	case "history":
		if s.instance.Persistence == nil {
			return failure(TableDB.ErrNoArchive)
		}
		revisions, err := s.instance.Persistence.History(req.Limit)
		if err != nil {
			return failure(err)
		}
		hr := HistoryResponse{Revisions: make([]RevisionResponse, len(revisions))}
		for i, rev := range revisions {
			hr.Revisions[i] = newRevisionResponse(rev)
		}
		return success("history", hr)

	default:
		return failure(fmt.Errorf("unknown op %q", req.Op))
	}
}

// createTable registers the table and then flags its primary-key columns.
func (s *Server) createTable(name string, columns []core.Column) (db.CommitResult, error) {
	engine := s.instance.Engine
	result, err := engine.CreateTable(name, columns)
	if err != nil {
		return result, err
	}
	for _, col := range columns {
		if !col.PrimaryKey {
			continue
		}
		if _, err := engine.SetPrimaryKey(name, col.Name, true); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (s *Server) identityFor(state *ConnectionState) core.Identity {
	if id := state.Identity(); id != nil {
		return *id
	}
	return s.identity
}

func query(result db.QueryResult, err error) Response {
	if err != nil {
		return failure(err)
	}
	return success("query", newQueryResponse(result))
}

func commit(result db.CommitResult, err error) Response {
	if err != nil {
		return failure(err)
	}
	return success("commit", newCommitResponse(result, false))
}
