package ps

import (
	"fmt"

	"github.com/nickyhof/TableDB/core"
)

// SaveSnapshot commits the tables as a new document revision.
func (p *Persistence) SaveSnapshot(tables []core.TableSnapshot, identity core.Identity, message string) (Revision, error) {
	data, err := Marshal(tables)
	if err != nil {
		return Revision{}, err
	}
	if message == "" {
		message = fmt.Sprintf("Snapshot of %d table(s)", len(tables))
	}
	return p.WriteFile(DocumentPath, data, identity, message)
}

// LatestSnapshot reads the document committed at HEAD.
func (p *Persistence) LatestSnapshot() ([]core.TableSnapshot, Revision, error) {
	rev := p.LatestRevision()
	if rev.Id == "" {
		return nil, Revision{}, ErrNoRevisions
	}
	tables, err := p.SnapshotAt(rev.Id)
	return tables, rev, err
}

// SnapshotAt reads the document committed at revision id.
func (p *Persistence) SnapshotAt(id string) ([]core.TableSnapshot, error) {
	data, err := p.ReadFile(DocumentPath, id)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}
