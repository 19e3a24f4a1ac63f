package domain

import "context"

// SnapshotStore is an append-only versioned history of snapshot files.
// A single Commit is atomic, but the store does no locking of its own:
// callers with overlapping keys must serialize commits externally.
type SnapshotStore interface {
	// Commit records filename (relative to the store root) as a new
	// version for the given device identity. Returns false when the file
	// content is unchanged and no new version was recorded.
	Commit(ctx context.Context, filename, identity string) (bool, error)
}
