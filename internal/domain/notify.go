package domain

import "context"

// Notifier delivers a job summary to an external channel. Best-effort:
// a delivery failure never changes a job's outcome.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Mirror copies a committed snapshot to an offsite location. Best-effort,
// invoked outside the store critical section.
type Mirror interface {
	Name() string
	Upload(ctx context.Context, localPath, remoteName string) error
}
