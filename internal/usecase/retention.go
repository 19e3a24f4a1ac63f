package usecase

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	timestampLayout   = "20060102_150405"
	snapshotExtension = ".conf"
)

var timestampPattern = regexp.MustCompile(`^(\d{8}_\d{6})$`)

// Retention caps the number of snapshots kept per device identity, deleting
// the oldest first. Stateless between invocations: each call re-reads the
// store directory, so re-running against an already-compliant set is a no-op.
//
// The retained history is keyed by the device's self-reported sanitized
// hostname. If a device is renamed, snapshots under the old name stop being
// counted against the cap.
type Retention struct {
	root   string
	cap    int
	logger Logger
}

// NewRetention assumes cap was validated as positive at configuration load.
func NewRetention(root string, cap int, logger Logger) *Retention {
	return &Retention{root: root, cap: cap, logger: logger}
}

// Enforce deletes the oldest snapshots of identity beyond the cap.
// Individual deletion failures are logged and skipped; they never fail the
// backup that triggered the cleanup.
func (r *Retention) Enforce(identity string) error {
	matches, err := filepath.Glob(filepath.Join(r.root, identity+"_*"+snapshotExtension))
	if err != nil {
		return fmt.Errorf("list snapshots for %s: %w", identity, err)
	}

	type snapshotFile struct {
		path       string
		capturedAt time.Time
	}

	var files []snapshotFile
	for _, path := range matches {
		ts, err := extractTimestamp(filepath.Base(path), identity)
		if err != nil {
			// A prefix-sharing identity or a stray file; not ours to touch.
			continue
		}
		files = append(files, snapshotFile{path: path, capturedAt: ts})
	}

	if len(files) <= r.cap {
		return nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].capturedAt.Before(files[j].capturedAt)
	})

	deleted := 0
	for _, f := range files[:len(files)-r.cap] {
		if err := os.Remove(f.path); err != nil {
			r.logger.Errorf("Failed to delete old snapshot %s: %v", f.path, err)
			continue
		}
		r.logger.Infof("Deleted old snapshot: %s", f.path)
		deleted++
	}

	r.logger.Infof("[%s] Retention enforced: %d snapshot(s) removed, %d kept",
		identity, deleted, r.cap)
	return nil
}

// extractTimestamp parses the capture time embedded in a snapshot filename
// of the form {identity}_{YYYYMMDD_HHMMSS}.conf.
func extractTimestamp(filename, identity string) (time.Time, error) {
	name := strings.TrimSuffix(filename, snapshotExtension)
	ts := strings.TrimPrefix(name, identity+"_")
	if !timestampPattern.MatchString(ts) {
		return time.Time{}, fmt.Errorf("no timestamp in filename %s", filename)
	}
	return time.Parse(timestampLayout, ts)
}
