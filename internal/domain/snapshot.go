package domain

import "time"

// Snapshot describes one captured configuration file. Immutable once
// written; a newer snapshot for the same device supersedes it, never
// replaces it in place.
type Snapshot struct {
	// Hostname is the sanitized device-reported identity, the key the
	// retained history is filed under.
	Hostname   string
	CapturedAt time.Time
	Size       int64
	FilePath   string
	Duration   time.Duration
	// Committed is false when the store commit failed after the file was
	// written: the snapshot exists on disk but not in version history.
	Committed bool
}

// DeviceResult is the terminal outcome of one per-device task.
type DeviceResult struct {
	Host     string
	Snapshot *Snapshot
	Err      error
}

func (r DeviceResult) OK() bool {
	return r.Err == nil
}

// JobReport aggregates every task outcome of a single run. Owned by the
// orchestrator for the run's lifetime, consumed once by the summary builder.
type JobReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []DeviceResult
}

func (j JobReport) Duration() time.Duration {
	return j.FinishedAt.Sub(j.StartedAt)
}

func (j JobReport) Successes() []DeviceResult {
	var out []DeviceResult
	for _, r := range j.Results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

func (j JobReport) Failures() []DeviceResult {
	var out []DeviceResult
	for _, r := range j.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

func (j JobReport) TotalBytes() int64 {
	var total int64
	for _, r := range j.Results {
		if r.OK() {
			total += r.Snapshot.Size
		}
	}
	return total
}
