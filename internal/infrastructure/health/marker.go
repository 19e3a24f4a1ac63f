package health

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Marker is the liveness timestamp the external health probe watches.
// The orchestrator touches it at job start and job end; a probe treats a
// stale marker as a stalled scheduler.
type Marker struct {
	path string
}

func NewMarker(path string) *Marker {
	return &Marker{path: path}
}

func (m *Marker) Touch() error {
	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create marker directory: %w", err)
		}
	}
	ts := time.Now().Format(time.RFC3339)
	if err := os.WriteFile(m.path, []byte(ts+"\n"), 0644); err != nil {
		return fmt.Errorf("write liveness marker: %w", err)
	}
	return nil
}

// Age returns the time since the last Touch. os.IsNotExist on the returned
// error distinguishes "never ran yet" from a real failure.
func (m *Marker) Age() (time.Duration, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return 0, err
	}
	return time.Since(info.ModTime()), nil
}
