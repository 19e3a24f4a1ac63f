package domain

import "strings"

// Device is a single inventory entry. Host is the only required field;
// port, credentials, and the capture command fall back to the process-wide
// defaults when unset.
type Device struct {
	Host     string
	Port     int
	Username string
	Password string
	Command  string
}

// Target is a Device with every fallback already applied. Task logic only
// ever sees a Target, never the raw inventory entry plus ambient defaults.
type Target struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Command         string
	IdentityCommand string
}

// Validate rejects a target whose resolved address or credentials are empty.
// This runs before any session is opened.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Host) == "" {
		return ErrMissingConfig
	}
	if t.Username == "" || t.Password == "" {
		return ErrMissingConfig
	}
	return nil
}

const unsafeFilenameChars = `;/\:*?"<>|`

// SanitizeIdentity makes a device-reported hostname safe to use as a
// snapshot filename key. Idempotent: sanitizing an already-sanitized
// identity returns it unchanged.
func SanitizeIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(unsafeFilenameChars, r) || r == ' ' || r == '\t' {
			return '_'
		}
		return r
	}, identity)
}
