package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures.
type ErrorKind int

const (
	UnknownError ErrorKind = iota
	SchemaError
	RowError
	ReferentialIntegrityError
	CatalogError
	TransactionError
)

func (k ErrorKind) String() string {
	switch k {
	case SchemaError:
		return "SchemaError"
	case RowError:
		return "RowError"
	case ReferentialIntegrityError:
		return "ReferentialIntegrityError"
	case CatalogError:
		return "CatalogError"
	case TransactionError:
		return "TransactionError"
	default:
		return "UnknownError"
	}
}

// Error is returned by every engine operation that fails. Op names the
// operation, e.g. "insert" or "add foreign key".
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Msg)
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrRow) works
// regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrSchema               = &Error{Kind: SchemaError}
	ErrRow                  = &Error{Kind: RowError}
	ErrReferentialIntegrity = &Error{Kind: ReferentialIntegrityError}
	ErrCatalog              = &Error{Kind: CatalogError}
	ErrTransaction          = &Error{Kind: TransactionError}
)

func Errorf(kind ErrorKind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return UnknownError
}
