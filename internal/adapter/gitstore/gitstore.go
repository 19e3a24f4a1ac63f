package gitstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Store keeps a versioned history of snapshot files in a git repository
// rooted at the backup directory. Commits are atomic but unsynchronized:
// callers must serialize overlapping commits themselves.
type Store struct {
	repo *git.Repository
	root string
}

// Open reuses an existing repository at root or initializes a fresh one.
// Idempotent across restarts.
func Open(root string) (*Store, error) {
	repo, err := git.PlainOpen(root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(root, false)
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot repository at %s: %w", root, err)
	}
	return &Store{repo: repo, root: root}, nil
}

// Commit stages filename (relative to the store root) and records a commit
// for it. Returns false without committing when the file content is
// unchanged since the last version.
func (s *Store) Commit(ctx context.Context, filename, identity string) (bool, error) {
	wt, err := s.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("worktree: %w", err)
	}

	if _, err := wt.Add(filename); err != nil {
		return false, fmt.Errorf("stage %s: %w", filename, err)
	}

	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("status: %w", err)
	}
	if status.File(filename).Staging == git.Unmodified {
		return false, nil
	}

	message := fmt.Sprintf("Backup %s: %s", identity, filename)
	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "netvault",
			Email: "netvault@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return false, fmt.Errorf("commit %s: %w", filename, err)
	}

	return true, nil
}
