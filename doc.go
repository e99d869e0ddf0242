// Package TableDB provides an embedded relational table store with a
// git-backed backup archive.
//
// Tables have typed, mutable schemas and positionally addressed rows.
// Foreign keys are checked on every write, and a single coarse-grained
// transaction can be rolled back to the exact state at Begin. The whole
// catalog is exchanged as one JSON document, which can also be committed to
// a git repository for history and point-in-time restore.
//
// # Quick Start
//
//	persistence, _ := ps.NewMemoryPersistence()
//	instance := TableDB.Open(persistence)
//	engine := instance.Engine
//
//	engine.CreateTable("Departments", []core.Column{
//	    {Name: "id", Type: core.IntType},
//	    {Name: "name", Type: core.TextType},
//	})
//	engine.InsertRow("Departments", []any{1, "Engineering"})
//
//	result, _ := engine.Select("Departments")
//	result.Display()
//
// # Export and Import
//
//	data, _ := instance.Export()
//	report, _ := instance.Import(data)
//	for _, f := range report.Failures {
//	    log.Println(f)
//	}
//
// ExportTo and ImportFrom accept local paths, file://, s3://bucket/key and
// (for import) http(s):// locations.
//
// # Archive
//
//	rev, _ := instance.Backup(identity, "before migration")
//	report, _ := instance.RestoreRevision(rev.Id)
package TableDB
