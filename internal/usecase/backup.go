package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/semmidev/netvault/internal/domain"
)

type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// LivenessMarker records job activity timestamps for the external health
// probe.
type LivenessMarker interface {
	Touch() error
}

// Backup orchestrates one job: bounded-parallel per-device tasks, a shared
// critical section for store commits and retention, and a single summary
// notification per run.
type Backup struct {
	dialer      domain.Dialer
	store       domain.SnapshotStore
	notifier    domain.Notifier
	mirrors     []domain.Mirror
	retry       *RetryPolicy
	retention   *Retention
	marker      LivenessMarker
	logger      Logger
	root        string
	concurrency int

	// commitMu serializes every device's commit+retention critical
	// section. Coarse by design: go-git worktree operations on one
	// repository must not interleave, and holding the lock across both
	// steps keeps the retained set within cap at every commit boundary.
	// A per-identity sharded lock would admit more parallelism but
	// changes observable interleaving; see DESIGN.md.
	commitMu sync.Mutex
}

func NewBackup(
	dialer domain.Dialer,
	store domain.SnapshotStore,
	notifier domain.Notifier,
	mirrors []domain.Mirror,
	retry *RetryPolicy,
	retention *Retention,
	marker LivenessMarker,
	logger Logger,
	root string,
	concurrency int,
) *Backup {
	return &Backup{
		dialer:      dialer,
		store:       store,
		notifier:    notifier,
		mirrors:     mirrors,
		retry:       retry,
		retention:   retention,
		marker:      marker,
		logger:      logger,
		root:        root,
		concurrency: concurrency,
	}
}

// Run executes one backup job over the inventory and returns the aggregated
// report. One device's failure never cancels the others; every dispatched
// task's outcome is collected. An empty inventory ends the job immediately
// with no notification.
func (uc *Backup) Run(ctx context.Context, targets []domain.Target) domain.JobReport {
	report := domain.JobReport{StartedAt: time.Now()}

	if len(targets) == 0 {
		uc.logger.Warnf("Inventory is empty, nothing to back up")
		report.FinishedAt = time.Now()
		return report
	}

	uc.touchMarker()
	uc.logger.Infof("Starting backup job for %d device(s)", len(targets))

	limit := uc.concurrency
	if len(targets) < limit {
		limit = len(targets)
	}

	results := make([]domain.DeviceResult, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			// Task failures land in the result slot, never in the
			// group: a failed device must not cancel its peers.
			results[i] = uc.backupDevice(gctx, target)
			return nil
		})
	}
	_ = g.Wait()

	report.Results = results
	report.FinishedAt = time.Now()

	uc.logger.Infof("Backup job finished: %d succeeded, %d failed in %s",
		len(report.Successes()), len(report.Failures()),
		report.Duration().Round(time.Second))

	uc.notify(ctx, report)
	uc.touchMarker()

	return report
}

// backupDevice runs the per-device state machine to a terminal result.
func (uc *Backup) backupDevice(ctx context.Context, target domain.Target) domain.DeviceResult {
	start := time.Now()
	host := target.Host

	if err := target.Validate(); err != nil {
		uc.logger.Errorf("[%s] Rejected before connect: %v", host, err)
		return domain.DeviceResult{Host: host, Err: err}
	}

	uc.logger.Infof("[%s] Starting backup...", host)

	var session domain.Session
	err := uc.retry.Do(ctx, host, func() error {
		s, err := uc.dialer.Dial(ctx, target)
		if err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		uc.logger.Errorf("[%s] Failed to connect: %v", host, err)
		return domain.DeviceResult{Host: host, Err: fmt.Errorf("connect: %w", err)}
	}
	defer session.Close()

	identity := uc.resolveIdentity(ctx, session, target)

	output, err := session.Run(ctx, target.Command)
	if err != nil {
		uc.logger.Errorf("[%s] Failed to capture configuration: %v", host, err)
		return domain.DeviceResult{Host: host, Err: fmt.Errorf("capture: %w", err)}
	}
	if strings.TrimSpace(output) == "" {
		uc.logger.Errorf("[%s] Device returned empty configuration", host)
		return domain.DeviceResult{Host: host, Err: fmt.Errorf("capture: empty configuration output")}
	}

	capturedAt := time.Now()
	filename := fmt.Sprintf("%s_%s%s", identity, capturedAt.Format(timestampLayout), snapshotExtension)
	filePath := filepath.Join(uc.root, filename)

	if err := writeAtomic(filePath, []byte(output)); err != nil {
		uc.logger.Errorf("[%s] Failed to write snapshot: %v", host, err)
		return domain.DeviceResult{Host: host, Err: fmt.Errorf("write snapshot: %w", err)}
	}

	snapshot := &domain.Snapshot{
		Hostname:   identity,
		CapturedAt: capturedAt,
		Size:       int64(len(output)),
		FilePath:   filePath,
		Committed:  true,
	}

	uc.commitMu.Lock()
	committed, err := uc.store.Commit(ctx, filename, identity)
	if err != nil {
		// Degraded success: the snapshot exists on disk even though it
		// did not make it into version history.
		uc.logger.Errorf("[%s] Failed to commit snapshot: %v", identity, err)
		snapshot.Committed = false
	} else if !committed {
		uc.logger.Infof("[%s] Configuration unchanged since last snapshot", identity)
	}
	if err := uc.retention.Enforce(identity); err != nil {
		uc.logger.Errorf("[%s] Retention enforcement failed: %v", identity, err)
	}
	uc.commitMu.Unlock()

	uc.mirror(ctx, filePath, filename)

	snapshot.Duration = time.Since(start)
	uc.logger.Infof("[%s] Backup completed in %s (%d bytes)",
		identity, snapshot.Duration.Round(time.Millisecond), snapshot.Size)

	return domain.DeviceResult{Host: host, Snapshot: snapshot}
}

// resolveIdentity queries the device for its own hostname, falling back to
// the inventory address on any error. Never fails the task.
func (uc *Backup) resolveIdentity(ctx context.Context, session domain.Session, target domain.Target) string {
	identity := target.Host
	if target.IdentityCommand != "" {
		out, err := session.Run(ctx, target.IdentityCommand)
		if err != nil {
			uc.logger.Warnf("[%s] Identity query failed, using inventory address: %v", target.Host, err)
		} else if reported := parseReportedHostname(out); reported != "" {
			identity = reported
		}
	}
	return domain.SanitizeIdentity(identity)
}

// parseReportedHostname extracts the hostname from identity-command output
// such as "Hostname: edge-r1" or a bare hostname line.
func parseReportedHostname(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if i := strings.LastIndex(line, ":"); i >= 0 {
			line = strings.TrimSpace(line[i+1:])
		}
		fields := strings.Fields(line)
		if len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

// writeAtomic writes to a temp name and renames into place so a failed
// capture never leaves a partial snapshot visible to retention.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (uc *Backup) mirror(ctx context.Context, filePath, filename string) {
	if len(uc.mirrors) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, m := range uc.mirrors {
		wg.Add(1)
		go func(m domain.Mirror) {
			defer wg.Done()
			if err := m.Upload(ctx, filePath, filename); err != nil {
				uc.logger.Errorf("Failed to mirror %s to %s: %v", filename, m.Name(), err)
			} else {
				uc.logger.Infof("Mirrored %s to %s", filename, m.Name())
			}
		}(m)
	}
	wg.Wait()
}

func (uc *Backup) notify(ctx context.Context, report domain.JobReport) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Send(ctx, BuildSummary(report)); err != nil {
		uc.logger.Errorf("Failed to send job summary: %v", err)
	}
}

func (uc *Backup) touchMarker() {
	if uc.marker == nil {
		return
	}
	if err := uc.marker.Touch(); err != nil {
		uc.logger.Errorf("Failed to update liveness marker: %v", err)
	}
}
