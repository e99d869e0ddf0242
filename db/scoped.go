package db

import (
	"errors"
	"fmt"
)

// RunInTransaction runs fn inside a transaction. It commits when fn returns
// nil and rolls back when fn returns an error or panics. A transaction that
// was already open is rolled back by the Begin, as with Engine.Begin.
func RunInTransaction(engine *Engine, fn func(*Engine) error) (err error) {
	if _, err := engine.Begin(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_, _ = engine.Rollback()
			panic(r)
		}
	}()

	if err := fn(engine); err != nil {
		if _, rbErr := engine.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	_, err = engine.Commit()
	return err
}
