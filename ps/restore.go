package ps

import (
	"fmt"

	"github.com/go-git/go-git/v6/plumbing"

	"github.com/nickyhof/TableDB/core"
)

// Tag names a restore point. A nil revision tags HEAD.
func (p *Persistence) Tag(name string, at *Revision) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var hash plumbing.Hash
	if at != nil {
		hash = plumbing.NewHash(at.Id)
	} else {
		head, err := p.repo.Head()
		if err != nil {
			return ErrNoRevisions
		}
		hash = head.Hash()
	}

	if _, err := p.repo.CreateTag(name, hash, nil); err != nil {
		return fmt.Errorf("failed to create tag %s: %w", name, err)
	}
	return nil
}

func (p *Persistence) Tags() ([]string, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	iter, err := p.repo.Tags()
	if err != nil {
		return nil, err
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	return names, err
}

// TaggedSnapshot reads the document at a named restore point.
func (p *Persistence) TaggedSnapshot(name string) ([]core.TableSnapshot, Revision, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, Revision{}, err
	}

	p.mu.RLock()
	ref, err := p.repo.Tag(name)
	if err != nil {
		p.mu.RUnlock()
		return nil, Revision{}, fmt.Errorf("tag %s: %w", name, err)
	}
	commit, err := p.repo.CommitObject(ref.Hash())
	p.mu.RUnlock()
	if err != nil {
		return nil, Revision{}, fmt.Errorf("tag %s: %w", name, err)
	}

	rev := revisionOf(commit)
	tables, err := p.SnapshotAt(rev.Id)
	return tables, rev, err
}
