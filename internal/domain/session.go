package domain

import "context"

// Session is an open, authenticated shell to one device.
type Session interface {
	// Run executes a read-only command and returns its raw text output.
	Run(ctx context.Context, command string) (string, error)
	Close() error
}

// Dialer opens device sessions. Errors wrap ErrConnect, ErrAuth or
// ErrCommandTimeout so callers can classify them.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Session, error)
}
