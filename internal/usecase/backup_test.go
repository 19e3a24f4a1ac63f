package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/netvault/internal/domain"
	"github.com/semmidev/netvault/internal/infrastructure/logger"
)

const (
	testConfigCmd   = "show configuration | display set"
	testIdentityCmd = "show version | match Hostname"
)

type fakeSession struct {
	identity    string
	identityErr error
	config      string
	configErr   error
}

func (s *fakeSession) Run(ctx context.Context, command string) (string, error) {
	if command == testIdentityCmd {
		return "Hostname: " + s.identity, s.identityErr
	}
	return s.config, s.configErr
}

func (s *fakeSession) Close() error { return nil }

type fakeDialer struct {
	mu     sync.Mutex
	dials  int
	perKey map[string]func() (domain.Session, error)

	// concurrency instrumentation
	delay     time.Duration
	inFlight  int32
	highWater int32
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{perKey: make(map[string]func() (domain.Session, error))}
}

func (d *fakeDialer) Dial(ctx context.Context, target domain.Target) (domain.Session, error) {
	d.mu.Lock()
	d.dials++
	fn := d.perKey[target.Host]
	d.mu.Unlock()

	if d.delay > 0 {
		n := atomic.AddInt32(&d.inFlight, 1)
		for {
			hw := atomic.LoadInt32(&d.highWater)
			if n <= hw || atomic.CompareAndSwapInt32(&d.highWater, hw, n) {
				break
			}
		}
		time.Sleep(d.delay)
		atomic.AddInt32(&d.inFlight, -1)
	}

	if fn != nil {
		return fn()
	}
	return &fakeSession{identity: target.Host, config: "set system host-name " + target.Host}, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type fakeStore struct {
	mu      sync.Mutex
	commits []string
	err     error
}

func (s *fakeStore) Commit(ctx context.Context, filename, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	s.commits = append(s.commits, filename)
	return true, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *fakeNotifier) Send(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, text)
	return nil
}

type fakeMarker struct {
	touches int32
}

func (m *fakeMarker) Touch() error {
	atomic.AddInt32(&m.touches, 1)
	return nil
}

func target(host string) domain.Target {
	return domain.Target{
		Host:            host,
		Port:            22,
		Username:        "backup",
		Password:        "secret",
		Command:         testConfigCmd,
		IdentityCommand: testIdentityCmd,
	}
}

func newTestBackup(root string, dialer domain.Dialer, store domain.SnapshotStore, notifier domain.Notifier, marker LivenessMarker, concurrency int) *Backup {
	log := logger.Nop()
	return NewBackup(
		dialer,
		store,
		notifier,
		nil,
		NewRetryPolicy(3, time.Millisecond, 5*time.Millisecond, log),
		NewRetention(root, 2, log),
		marker,
		log,
		root,
		concurrency,
	)
}

func TestBackupRun(t *testing.T) {
	Convey("Given a backup orchestrator", t, func() {
		tempDir, err := os.MkdirTemp("", "backup_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		ctx := context.Background()

		Convey("When running over a mixed inventory", func() {
			dialer := newFakeDialer()
			dialer.perKey["10.0.0.2"] = func() (domain.Session, error) {
				return nil, fmt.Errorf("%w: 10.0.0.2", domain.ErrAuth)
			}
			store := &fakeStore{}
			notifier := &fakeNotifier{}

			uc := newTestBackup(tempDir, dialer, store, notifier, &fakeMarker{}, 10)
			report := uc.Run(ctx, []domain.Target{
				target("10.0.0.1"), target("10.0.0.2"), target("10.0.0.3"),
			})

			Convey("Every inventory entry should have exactly one outcome", func() {
				So(len(report.Results), ShouldEqual, 3)
				So(len(report.Successes()), ShouldEqual, 2)
				So(len(report.Failures()), ShouldEqual, 1)
			})

			Convey("The summary should be sent exactly once", func() {
				So(len(notifier.sent), ShouldEqual, 1)
			})

			Convey("Successful snapshots should be on disk and committed", func() {
				So(len(store.commits), ShouldEqual, 2)
				for _, r := range report.Successes() {
					_, err := os.Stat(r.Snapshot.FilePath)
					So(err, ShouldBeNil)
					So(r.Snapshot.Committed, ShouldBeTrue)
					So(r.Snapshot.Size, ShouldBeGreaterThan, 0)
				}
			})
		})

		Convey("When a device has no resolvable credentials", func() {
			dialer := newFakeDialer()
			notifier := &fakeNotifier{}

			uc := newTestBackup(tempDir, dialer, &fakeStore{}, notifier, &fakeMarker{}, 10)
			noCreds := domain.Target{Host: "10.0.0.1", Port: 22, Command: testConfigCmd}
			report := uc.Run(ctx, []domain.Target{noCreds})

			Convey("It should fail with missing configuration and open zero sessions", func() {
				So(len(report.Failures()), ShouldEqual, 1)
				So(errors.Is(report.Failures()[0].Err, domain.ErrMissingConfig), ShouldBeTrue)
				So(dialer.dialCount(), ShouldEqual, 0)
			})
		})

		Convey("When one device times out on every attempt", func() {
			dialer := newFakeDialer()
			dialer.perKey["10.0.0.3"] = func() (domain.Session, error) {
				return nil, fmt.Errorf("%w: 10.0.0.3", domain.ErrConnect)
			}
			notifier := &fakeNotifier{}

			uc := newTestBackup(tempDir, dialer, &fakeStore{}, notifier, &fakeMarker{}, 10)
			report := uc.Run(ctx, []domain.Target{
				target("10.0.0.1"), target("10.0.0.2"), target("10.0.0.3"),
			})

			Convey("Its retries should not affect the other devices", func() {
				So(len(report.Successes()), ShouldEqual, 2)
				So(len(report.Failures()), ShouldEqual, 1)
				// 2 clean dials + 3 attempts on the flapping device
				So(dialer.dialCount(), ShouldEqual, 5)
			})

			Convey("The summary should name the successes and the failed address", func() {
				So(len(notifier.sent), ShouldEqual, 1)
				text := notifier.sent[0]
				So(text, ShouldContainSubstring, "10.0.0.1")
				So(text, ShouldContainSubstring, "10.0.0.2")
				So(text, ShouldContainSubstring, "10.0.0.3")
				So(text, ShouldContainSubstring, "2 succeeded, 1 failed")
			})
		})

		Convey("When the inventory is empty", func() {
			dialer := newFakeDialer()
			notifier := &fakeNotifier{}
			marker := &fakeMarker{}

			uc := newTestBackup(tempDir, dialer, &fakeStore{}, notifier, marker, 10)
			report := uc.Run(ctx, nil)

			Convey("The job should end immediately with no side effects", func() {
				So(len(report.Results), ShouldEqual, 0)
				So(dialer.dialCount(), ShouldEqual, 0)
				So(len(notifier.sent), ShouldEqual, 0)
				So(atomic.LoadInt32(&marker.touches), ShouldEqual, 0)
			})
		})

		Convey("When every device fails", func() {
			dialer := newFakeDialer()
			for _, h := range []string{"a", "b"} {
				dialer.perKey[h] = func() (domain.Session, error) {
					return nil, fmt.Errorf("%w: refused", domain.ErrAuth)
				}
			}
			notifier := &fakeNotifier{}

			uc := newTestBackup(tempDir, dialer, &fakeStore{}, notifier, &fakeMarker{}, 10)
			report := uc.Run(ctx, []domain.Target{target("a"), target("b")})

			Convey("The summary should still be sent exactly once", func() {
				So(len(report.Successes()), ShouldEqual, 0)
				So(len(notifier.sent), ShouldEqual, 1)
			})
		})

		Convey("When the concurrency ceiling is lower than the inventory", func() {
			dialer := newFakeDialer()
			dialer.delay = 20 * time.Millisecond

			var targets []domain.Target
			for i := 0; i < 12; i++ {
				targets = append(targets, target(fmt.Sprintf("10.0.1.%d", i)))
			}

			uc := newTestBackup(tempDir, dialer, &fakeStore{}, &fakeNotifier{}, &fakeMarker{}, 3)
			report := uc.Run(ctx, targets)

			Convey("No more than 3 sessions should ever be open at once", func() {
				So(len(report.Results), ShouldEqual, 12)
				So(atomic.LoadInt32(&dialer.highWater), ShouldBeLessThanOrEqualTo, 3)
				So(dialer.dialCount(), ShouldEqual, 12)
			})
		})

		Convey("When the store commit fails", func() {
			dialer := newFakeDialer()
			store := &fakeStore{err: errors.New("index locked")}
			notifier := &fakeNotifier{}

			uc := newTestBackup(tempDir, dialer, store, notifier, &fakeMarker{}, 10)
			report := uc.Run(ctx, []domain.Target{target("r9")})

			Convey("The device should still count as a degraded success", func() {
				So(len(report.Successes()), ShouldEqual, 1)
				snap := report.Successes()[0].Snapshot
				So(snap.Committed, ShouldBeFalse)

				_, err := os.Stat(snap.FilePath)
				So(err, ShouldBeNil)
			})

			Convey("The summary should flag the uncommitted snapshot", func() {
				So(notifier.sent[0], ShouldContainSubstring, "not committed to history")
			})
		})

		Convey("When a device returns empty configuration output", func() {
			dialer := newFakeDialer()
			dialer.perKey["r1"] = func() (domain.Session, error) {
				return &fakeSession{identity: "r1", config: "  \n"}, nil
			}
			store := &fakeStore{}

			uc := newTestBackup(tempDir, dialer, store, &fakeNotifier{}, &fakeMarker{}, 10)
			report := uc.Run(ctx, []domain.Target{target("r1")})

			Convey("The task should fail without committing anything", func() {
				So(len(report.Failures()), ShouldEqual, 1)
				So(report.Failures()[0].Err.Error(), ShouldContainSubstring, "empty configuration")
				So(len(store.commits), ShouldEqual, 0)
				So(len(listSnapshots(tempDir)), ShouldEqual, 0)
			})
		})

		Convey("When the device reports a hostname needing sanitization", func() {
			dialer := newFakeDialer()
			dialer.perKey["10.0.0.1"] = func() (domain.Session, error) {
				return &fakeSession{identity: `edge/r1|core`, config: "set system\n"}, nil
			}
			store := &fakeStore{}

			uc := newTestBackup(tempDir, dialer, store, &fakeNotifier{}, &fakeMarker{}, 10)
			report := uc.Run(ctx, []domain.Target{target("10.0.0.1")})

			Convey("The snapshot should be keyed by the sanitized identity", func() {
				So(len(report.Successes()), ShouldEqual, 1)
				So(report.Successes()[0].Snapshot.Hostname, ShouldEqual, "edge_r1_core")
			})
		})

		Convey("When the identity query fails", func() {
			dialer := newFakeDialer()
			dialer.perKey["10.0.0.7"] = func() (domain.Session, error) {
				return &fakeSession{
					identity:    "ignored",
					identityErr: fmt.Errorf("%w: identity query", domain.ErrCommandTimeout),
					config:      "set system\n",
				}, nil
			}

			uc := newTestBackup(tempDir, dialer, &fakeStore{}, &fakeNotifier{}, &fakeMarker{}, 10)
			report := uc.Run(ctx, []domain.Target{target("10.0.0.7")})

			Convey("The task should fall back to the inventory address", func() {
				So(len(report.Successes()), ShouldEqual, 1)
				So(report.Successes()[0].Snapshot.Hostname, ShouldEqual, "10.0.0.7")
			})
		})

		Convey("When pre-existing snapshots exceed the cap after a new commit", func() {
			writeSnapshot(tempDir, "r1_20240101_000000.conf")
			writeSnapshot(tempDir, "r1_20240102_000000.conf")
			writeSnapshot(tempDir, "r1_20240103_000000.conf")

			dialer := newFakeDialer()
			dialer.perKey["r1"] = func() (domain.Session, error) {
				return &fakeSession{identity: "r1", config: "set system\n"}, nil
			}

			uc := newTestBackup(tempDir, dialer, &fakeStore{}, &fakeNotifier{}, &fakeMarker{}, 10)
			report := uc.Run(ctx, []domain.Target{target("r1")})

			Convey("Exactly the two oldest should be removed, keeping the new one", func() {
				So(len(report.Successes()), ShouldEqual, 1)
				remaining := listSnapshots(tempDir)
				So(len(remaining), ShouldEqual, 2)
				So(remaining, ShouldNotContain, "r1_20240101_000000.conf")
				So(remaining, ShouldNotContain, "r1_20240102_000000.conf")
				So(remaining, ShouldContain, filepath.Base(report.Successes()[0].Snapshot.FilePath))
			})
		})

		Convey("When the notifier fails", func() {
			dialer := newFakeDialer()
			notifier := &fakeNotifier{err: errors.New("telegram down")}
			marker := &fakeMarker{}

			uc := newTestBackup(tempDir, dialer, &fakeStore{}, notifier, marker, 10)
			report := uc.Run(ctx, []domain.Target{target("r1")})

			Convey("The job outcome should be unaffected", func() {
				So(len(report.Successes()), ShouldEqual, 1)
				So(atomic.LoadInt32(&marker.touches), ShouldEqual, 2)
			})
		})
	})
}
