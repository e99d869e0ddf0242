package db

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nickyhof/TableDB/core"
	"github.com/nickyhof/TableDB/op"
)

type TransactionState int

const (
	TransactionActive TransactionState = iota
	TransactionCommitted
	TransactionRolledBack
)

func (s TransactionState) String() string {
	switch s {
	case TransactionActive:
		return "Active"
	case TransactionCommitted:
		return "Committed"
	case TransactionRolledBack:
		return "RolledBack"
	default:
		return "Unknown"
	}
}

// Transaction holds a deep copy of the catalog taken at Begin. Mutations
// inside a transaction apply to live tables; the copy only serves Rollback.
type Transaction struct {
	Id      string
	State   TransactionState
	Started time.Time
	backup  []*op.Table
}

// TransactionInfo describes the open transaction, if any.
type TransactionInfo struct {
	Id      string
	Started time.Time
	Tables  int
}

func (e *Engine) snapshot() []*op.Table {
	backup := make([]*op.Table, len(e.tables))
	for i, t := range e.tables {
		backup[i] = t.Clone()
	}
	return backup
}

// Begin opens a transaction. If one is already open it is rolled back first
// and the result carries a warning saying so.
func (e *Engine) Begin() (CommitResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	var warning string
	if e.txn != nil {
		prev := e.txn.Id
		e.rollback()
		warning = "transaction " + prev + " was rolled back by a new begin"
		e.logger.Warn("implicit rollback on begin", zap.String("transaction", prev))
	}

	e.txn = &Transaction{
		Id:      uuid.NewString(),
		State:   TransactionActive,
		Started: time.Now(),
		backup:  e.snapshot(),
	}
	e.logger.Debug("transaction started", zap.String("transaction", e.txn.Id), zap.Int("tables", len(e.tables)))

	res := e.result(start, len(e.tables)+1)
	res.Warning = warning
	return res, nil
}

// Commit keeps every change made since Begin.
func (e *Engine) Commit() (CommitResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.txn == nil {
		return CommitResult{}, core.Errorf(core.TransactionError, "commit", "no active transaction")
	}

	res := e.result(start, 1)
	e.txn.State = TransactionCommitted
	e.txn.backup = nil
	e.logger.Debug("transaction committed", zap.String("transaction", e.txn.Id))
	e.txn = nil
	return res, nil
}

// Rollback restores the catalog captured by Begin. It is a no-op when no
// transaction is open.
func (e *Engine) Rollback() (CommitResult, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.txn == nil {
		return e.result(start, 0), nil
	}
	res := e.result(start, len(e.txn.backup)+1)
	e.rollback()
	return res, nil
}

func (e *Engine) rollback() {
	e.tables = e.txn.backup
	e.integrity.Reset()
	e.txn.State = TransactionRolledBack
	e.txn.backup = nil
	e.logger.Debug("transaction rolled back", zap.String("transaction", e.txn.Id))
	e.txn = nil
}

// InTransaction reports whether a transaction is open.
func (e *Engine) InTransaction() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txn != nil
}

// CurrentTransaction returns the open transaction, if any.
func (e *Engine) CurrentTransaction() (TransactionInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.txn == nil {
		return TransactionInfo{}, false
	}
	return TransactionInfo{Id: e.txn.Id, Started: e.txn.Started, Tables: len(e.txn.backup)}, true
}
