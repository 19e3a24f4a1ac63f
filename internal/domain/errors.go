package domain

import "errors"

var (
	// ErrMissingConfig marks a device rejected before any session was
	// opened: empty host or unresolvable credentials.
	ErrMissingConfig = errors.New("missing configuration")

	// ErrConnect marks a failed session dial (refused, unreachable,
	// dial timeout). Transient.
	ErrConnect = errors.New("connection failed")

	// ErrAuth marks a rejected authentication. Permanent: retrying risks
	// an account lockout and cannot succeed.
	ErrAuth = errors.New("authentication failed")

	// ErrCommandTimeout marks a command that did not complete within the
	// transport deadline. Transient.
	ErrCommandTimeout = errors.New("command timed out")
)

// Transient reports whether retrying the failed attempt may succeed.
func Transient(err error) bool {
	return errors.Is(err, ErrConnect) || errors.Is(err, ErrCommandTimeout)
}
