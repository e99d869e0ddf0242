package ps

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// Revision is one commit of the archive.
type Revision struct {
	Id      string
	When    time.Time
	Author  string // "Name <email>"
	Message string
}

func (r Revision) String() string {
	return fmt.Sprintf("Revision{Id: %s, When: %s, Author: %s}", r.Id, r.When.Format(time.RFC3339), r.Author)
}

// Short returns the abbreviated revision id.
func (r Revision) Short() string {
	if len(r.Id) > 8 {
		return r.Id[:8]
	}
	return r.Id
}

func revisionOf(c *object.Commit) Revision {
	author := ""
	if c.Author.Name != "" || c.Author.Email != "" {
		author = fmt.Sprintf("%s <%s>", c.Author.Name, c.Author.Email)
	}
	return Revision{
		Id:      c.Hash.String(),
		When:    c.Committer.When,
		Author:  author,
		Message: strings.TrimSpace(c.Message),
	}
}

// LatestRevision returns HEAD, or the zero Revision before the first commit.
func (p *Persistence) LatestRevision() Revision {
	if !p.IsInitialized() {
		return Revision{}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	head, err := p.repo.Head()
	if err != nil {
		return Revision{}
	}
	commit, err := p.repo.CommitObject(head.Hash())
	if err != nil {
		return Revision{}
	}
	return revisionOf(commit)
}

// Resolve looks up a revision by id, tag name or other git revision
// expression such as "HEAD~1".
func (p *Persistence) Resolve(id string) (Revision, error) {
	if err := p.ensureInitialized(); err != nil {
		return Revision{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	hash, err := p.resolve(id)
	if err != nil {
		return Revision{}, err
	}
	commit, err := p.repo.CommitObject(hash)
	if err != nil {
		return Revision{}, fmt.Errorf("revision %s: %w", id, err)
	}
	return revisionOf(commit), nil
}

// History returns up to limit revisions, newest first. A limit of zero or
// less returns all of them.
func (p *Persistence) History(limit int) ([]Revision, error) {
	return p.log(&git.LogOptions{}, limit)
}

// RevisionsSince returns every revision committed at or after since, newest
// first.
func (p *Persistence) RevisionsSince(since time.Time) ([]Revision, error) {
	return p.log(&git.LogOptions{Since: &since}, 0)
}

func (p *Persistence) log(opts *git.LogOptions, limit int) ([]Revision, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, err := p.repo.Head(); err != nil {
		return nil, nil
	}

	iter, err := p.repo.Log(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer iter.Close()

	var revisions []Revision
	for {
		c, err := iter.Next()
		if err != nil {
			break
		}
		revisions = append(revisions, revisionOf(c))
		if limit > 0 && len(revisions) == limit {
			break
		}
	}
	return revisions, nil
}
