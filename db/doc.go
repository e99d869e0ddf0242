// Package db provides the TableDB engine: the table catalog, foreign-key
// integrity checks and transactions.
//
// # Engine Usage
//
//	engine := db.NewEngine(db.WithLogger(logger))
//	engine.CreateTable("Departments", []core.Column{
//	    {Name: "id", Type: core.IntType},
//	    {Name: "name", Type: core.TextType},
//	})
//	result, err := engine.InsertRow("Departments", []any{1, "IT"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result.Display()
//
// # Foreign Keys
//
// Constraints are name-based. Dropping a referenced table leaves the
// constraint in place; ValidateForeignKeys reports it as dangling until the
// table is recreated or the constraint is removed. Inserts and updates check
// constrained values eagerly; zero values (0, 0.0, "") always pass.
//
// # Transactions
//
// Begin snapshots the whole catalog and Rollback restores it. Only one
// transaction is open at a time: a second Begin rolls the first one back and
// says so in the result's Warning. Failed operations never end a
// transaction; use RunInTransaction for commit-or-rollback scoping.
//
// # Result Types
//
//   - QueryResult: returned by Describe and Select
//   - CommitResult: returned by every mutation
package db
