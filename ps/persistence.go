package ps

import (
	"errors"
	"os"
	"sync"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"
)

// DocumentPath is the file that holds the exported document in every
// archive revision.
const DocumentPath = "tabledb.json"

var (
	ErrNotInitialized = errors.New("persistence layer not initialized")
	ErrNoRevisions    = errors.New("archive has no revisions")
)

// Persistence is a git repository used as a versioned archive of exported
// documents. Every SaveSnapshot is one commit.
type Persistence struct {
	repo   *git.Repository
	mu     sync.RWMutex
	memory bool
}

func (p *Persistence) IsInitialized() bool {
	return p != nil && p.repo != nil
}

func (p *Persistence) ensureInitialized() error {
	if !p.IsInitialized() {
		return ErrNotInitialized
	}
	return nil
}

func NewMemoryPersistence() (*Persistence, error) {
	repo, err := git.Init(memory.NewStorage(), git.WithWorkTree(memfs.New()))
	if err != nil {
		return nil, err
	}
	return &Persistence{repo: repo, memory: true}, nil
}

// NewFilePersistence opens the archive in baseDir, creating it if needed.
// With a non-nil gitURL the archive is cloned from that remote instead.
func NewFilePersistence(baseDir string, gitURL *string) (*Persistence, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	wt := osfs.New(baseDir)
	dot, err := wt.Chroot(".git")
	if err != nil {
		return nil, err
	}
	storer := filesystem.NewStorageWithOptions(dot, cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})

	var repo *git.Repository
	switch {
	case gitURL != nil && *gitURL != "":
		repo, err = git.Clone(storer, wt, &git.CloneOptions{URL: *gitURL})
	default:
		if _, statErr := os.Stat(dot.Root()); statErr != nil {
			repo, err = git.Init(storer, git.WithWorkTree(wt))
		} else {
			repo, err = git.Open(storer, wt)
		}
	}
	if err != nil {
		return nil, err
	}
	return &Persistence{repo: repo}, nil
}
