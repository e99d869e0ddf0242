// Package op provides the Table: schema and row storage for TableDB.
//
// A Table owns an ordered column list, a positionally addressed row list and
// the foreign keys sourced from its columns. It enforces the arity invariant
// (every row has one value per column), per-call atomicity (a failed call
// leaves the table untouched) and primary-key uniqueness.
//
// # Rows
//
//	table, err := op.NewTable("Departments", []core.Column{
//	    {Name: "id", Type: core.IntType},
//	    {Name: "name", Type: core.TextType},
//	})
//	idx, err := table.Insert([]any{1, "IT"}, nil)
//	err = table.Update(idx, 1, "Engineering", nil)
//	err = table.Delete(idx)
//
// Row positions are not stable identities: Delete(i) shifts every later row
// down by one.
//
// # Schema
//
//	table.AddColumn("budget", core.FloatType, 0.0)
//	table.RenameColumn("budget", "annual_budget")
//	table.DropColumn("annual_budget")
//	next, err := table.Transform(newColumns)
//
// Transform carries values over by column name and returns a new Table; the
// caller decides whether to replace the original.
//
// # Architecture
//
// The layering is:
//
//	Server / CLI (cmd/)
//	     ↓
//	Engine (db/)         catalog, foreign keys, transactions
//	     ↓
//	Table (op/)          ← This package
//	     ↓
//	Types (core/)
package op
