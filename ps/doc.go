// Package ps provides persistence for TableDB: the JSON document codec, a
// git-backed archive of exported documents, document locations (local
// files, HTTP, S3) and the periodic backup scheduler.
//
// # Documents
//
//	data, err := ps.Marshal(engine.Enumerate())
//	tables, err := ps.Unmarshal(data)
//
// # Archive
//
// Every SaveSnapshot is a git commit of tabledb.json:
//
//	archive, err := ps.NewFilePersistence("/path/to/data", nil)
//	rev, err := archive.SaveSnapshot(engine.Enumerate(), identity, "nightly")
//	tables, err := archive.SnapshotAt(rev.Id)
//
// # Locations
//
// OpenReader and OpenWriter accept local paths, file://, http(s):// (read
// only) and s3://bucket/key URLs.
//
// # Backups
//
//	scheduler := ps.NewBackupScheduler(engine, ps.BackupOptions{Dir: "backups"})
//	go scheduler.Run(ctx)
package ps
