package TableDB

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nickyhof/TableDB/core"
	"github.com/nickyhof/TableDB/db"
	"github.com/nickyhof/TableDB/ps"
)

// ErrNoArchive is returned by archive operations on an instance opened
// without persistence.
var ErrNoArchive = errors.New("instance has no backup archive")

// Instance pairs an engine with its optional git backup archive.
type Instance struct {
	Engine      *db.Engine
	Persistence *ps.Persistence
	logger      *zap.Logger
}

type Option func(*Instance)

func WithLogger(logger *zap.Logger) Option {
	return func(instance *Instance) {
		if logger != nil {
			instance.logger = logger
		}
	}
}

// Open creates an instance with an empty catalog. persistence may be nil.
func Open(persistence *ps.Persistence, opts ...Option) *Instance {
	instance := &Instance{
		Persistence: persistence,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(instance)
	}
	instance.Engine = db.NewEngine(db.WithLogger(instance.logger.Named("engine")))
	return instance
}

// Export serializes the whole catalog as a JSON document.
func (instance *Instance) Export() ([]byte, error) {
	return ps.Marshal(instance.Engine.Enumerate())
}

// Import replaces the catalog with the tables of a JSON document. Tables,
// rows and constraints that fail to load are reported and skipped.
func (instance *Instance) Import(data []byte) (db.LoadReport, error) {
	tables, err := ps.Unmarshal(data)
	if err != nil {
		return db.LoadReport{}, err
	}
	return instance.load(tables), nil
}

func (instance *Instance) load(tables []core.TableSnapshot) db.LoadReport {
	report := instance.Engine.Replace(tables)
	if !report.OK() {
		instance.logger.Warn("import finished with failures",
			zap.Int("tables", report.TablesCreated),
			zap.Int("rows", report.RowsLoaded),
			zap.Int("failures", len(report.Failures)))
	}
	return report
}

// ExportTo writes the document to a local path, file:// or s3:// location.
func (instance *Instance) ExportTo(ctx context.Context, location string, cfg *ps.S3Config) (err error) {
	w, err := ps.OpenWriter(ctx, location, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	return ps.Encode(w, instance.Engine.Enumerate())
}

// ImportFrom reads a document from a local path, file://, http(s):// or
// s3:// location and imports it.
func (instance *Instance) ImportFrom(ctx context.Context, location string, cfg *ps.S3Config) (db.LoadReport, error) {
	r, err := ps.OpenReader(ctx, location, cfg)
	if err != nil {
		return db.LoadReport{}, err
	}
	defer r.Close()

	tables, err := ps.Decode(r)
	if err != nil {
		return db.LoadReport{}, fmt.Errorf("%s: %w", location, err)
	}
	return instance.load(tables), nil
}

// Backup commits the current catalog to the archive.
func (instance *Instance) Backup(identity core.Identity, message string) (ps.Revision, error) {
	if instance.Persistence == nil {
		return ps.Revision{}, ErrNoArchive
	}
	return instance.Persistence.SaveSnapshot(instance.Engine.Enumerate(), identity, message)
}

// RestoreLatest imports the newest archived document.
func (instance *Instance) RestoreLatest() (db.LoadReport, ps.Revision, error) {
	if instance.Persistence == nil {
		return db.LoadReport{}, ps.Revision{}, ErrNoArchive
	}
	tables, rev, err := instance.Persistence.LatestSnapshot()
	if err != nil {
		return db.LoadReport{}, ps.Revision{}, err
	}
	return instance.load(tables), rev, nil
}

// RestoreRevision imports the document archived at a revision id.
func (instance *Instance) RestoreRevision(id string) (db.LoadReport, error) {
	if instance.Persistence == nil {
		return db.LoadReport{}, ErrNoArchive
	}
	tables, err := instance.Persistence.SnapshotAt(id)
	if err != nil {
		return db.LoadReport{}, err
	}
	return instance.load(tables), nil
}

func (instance *Instance) RestoreTag(name string) (db.LoadReport, ps.Revision, error) {
	if instance.Persistence == nil {
		return db.LoadReport{}, ps.Revision{}, ErrNoArchive
	}
	tables, rev, err := instance.Persistence.TaggedSnapshot(name)
	if err != nil {
		return db.LoadReport{}, ps.Revision{}, err
	}
	return instance.load(tables), rev, nil
}

// NewBackupScheduler returns a scheduler that backs up this instance's
// engine.
func (instance *Instance) NewBackupScheduler(opts ps.BackupOptions) *ps.BackupScheduler {
	if opts.Logger == nil {
		opts.Logger = instance.logger
	}
	return ps.NewBackupScheduler(instance.Engine, opts)
}
