package ps

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"

	"github.com/nickyhof/TableDB/core"
)

// createBlob stores data in the object database without touching the
// worktree.
func (p *Persistence) createBlob(data []byte) (plumbing.Hash, error) {
	obj := p.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to create blob writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return plumbing.ZeroHash, fmt.Errorf("failed to write blob data: %w", err)
	}
	w.Close()

	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store blob: %w", err)
	}
	return hash, nil
}

// headTree returns the tree of HEAD, or ZeroHash before the first commit.
func (p *Persistence) headTree() (plumbing.Hash, error) {
	head, err := p.repo.Head()
	if err != nil {
		return plumbing.ZeroHash, nil
	}
	commit, err := p.repo.CommitObject(head.Hash())
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get head commit: %w", err)
	}
	return commit.TreeHash, nil
}

func (p *Persistence) storeTree(entries []object.TreeEntry) (plumbing.Hash, error) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Name, entries[j].Name
		if entries[i].Mode == filemode.Dir {
			a += "/"
		}
		if entries[j].Mode == filemode.Dir {
			b += "/"
		}
		return a < b
	})

	obj := p.repo.Storer.NewEncodedObject()
	if err := (&object.Tree{Entries: entries}).Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}
	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}
	return hash, nil
}

// putTreeFile returns a new tree equal to root with blob stored at path.
// Intermediate directories are created.
func (p *Persistence) putTreeFile(root plumbing.Hash, path string, blob plumbing.Hash) (plumbing.Hash, error) {
	name, rest, nested := strings.Cut(path, "/")
	if name == "" {
		return plumbing.ZeroHash, fmt.Errorf("invalid path %q", path)
	}

	var entries []object.TreeEntry
	var subtree plumbing.Hash
	if root != plumbing.ZeroHash {
		tree, err := object.GetTree(p.repo.Storer, root)
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to get tree: %w", err)
		}
		for _, e := range tree.Entries {
			if e.Name == name {
				if e.Mode == filemode.Dir {
					subtree = e.Hash
				}
				continue
			}
			entries = append(entries, e)
		}
	}

	entry := object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: blob}
	if nested {
		hash, err := p.putTreeFile(subtree, rest, blob)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entry = object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: hash}
	}
	return p.storeTree(append(entries, entry))
}

func (p *Persistence) createCommit(tree plumbing.Hash, identity core.Identity, message string) (Revision, error) {
	var parents []plumbing.Hash
	head, err := p.repo.Head()
	if err == nil {
		parents = []plumbing.Hash{head.Hash()}
	}

	sig := object.Signature{Name: identity.Name, Email: identity.Email, When: time.Now()}
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: parents,
	}

	obj := p.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return Revision{}, fmt.Errorf("failed to encode commit: %w", err)
	}
	hash, err := p.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return Revision{}, fmt.Errorf("failed to store commit: %w", err)
	}

	branch := plumbing.Master
	if head != nil && head.Name().IsBranch() {
		branch = head.Name()
	}
	if err := p.repo.Storer.SetReference(plumbing.NewHashReference(branch, hash)); err != nil {
		return Revision{}, fmt.Errorf("failed to update HEAD: %w", err)
	}

	return Revision{
		Id:      hash.String(),
		When:    sig.When,
		Author:  identity.String(),
		Message: message,
	}, nil
}

// syncWorktree checks HEAD out into the data directory so the latest
// document is readable on disk. Memory archives have nothing to sync.
func (p *Persistence) syncWorktree() error {
	if p.memory {
		return nil
	}
	wt, err := p.repo.Worktree()
	if err != nil {
		return err
	}
	head, err := p.repo.Head()
	if err != nil {
		return err
	}
	return wt.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: head.Hash()})
}

// WriteFile commits data at path on top of HEAD.
func (p *Persistence) WriteFile(path string, data []byte, identity core.Identity, message string) (Revision, error) {
	if err := p.ensureInitialized(); err != nil {
		return Revision{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	root, err := p.headTree()
	if err != nil {
		return Revision{}, err
	}
	blob, err := p.createBlob(data)
	if err != nil {
		return Revision{}, err
	}
	tree, err := p.putTreeFile(root, path, blob)
	if err != nil {
		return Revision{}, fmt.Errorf("failed to update tree: %w", err)
	}
	rev, err := p.createCommit(tree, identity, message)
	if err != nil {
		return Revision{}, err
	}
	if err := p.syncWorktree(); err != nil {
		return Revision{}, fmt.Errorf("failed to sync worktree: %w", err)
	}
	return rev, nil
}

// ReadFile reads path as of the given revision id, or HEAD when id is empty.
func (p *Persistence) ReadFile(path, id string) ([]byte, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	hash, err := p.resolve(id)
	if err != nil {
		return nil, err
	}
	commit, err := p.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("revision %s: %w", id, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	file, err := tree.File(path)
	if err != nil {
		return nil, fmt.Errorf("file %s not found: %w", path, err)
	}
	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read contents: %w", err)
	}
	return []byte(content), nil
}

// resolve turns a revision id, tag or other git revision expression into a
// commit hash. An empty id means HEAD.
func (p *Persistence) resolve(id string) (plumbing.Hash, error) {
	if id != "" {
		hash, err := p.repo.ResolveRevision(plumbing.Revision(id))
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("revision %s: %w", id, err)
		}
		return *hash, nil
	}
	head, err := p.repo.Head()
	if err != nil {
		return plumbing.ZeroHash, ErrNoRevisions
	}
	return head.Hash(), nil
}
