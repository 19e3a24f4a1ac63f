package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/semmidev/netvault/internal/adapter/device"
	"github.com/semmidev/netvault/internal/adapter/gitstore"
	"github.com/semmidev/netvault/internal/adapter/mirror"
	"github.com/semmidev/netvault/internal/adapter/notify"
	"github.com/semmidev/netvault/internal/config"
	"github.com/semmidev/netvault/internal/domain"
	"github.com/semmidev/netvault/internal/infrastructure/health"
	"github.com/semmidev/netvault/internal/infrastructure/logger"
	"github.com/semmidev/netvault/internal/infrastructure/scheduler"
	"github.com/semmidev/netvault/internal/usecase"
)

const (
	retryAttempts  = 3
	retryBaseDelay = 5 * time.Second
	retryMaxDelay  = time.Minute
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	scheduler *scheduler.Scheduler
	backupUC  *usecase.Backup
}

func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s", cfg.App.Name)
	log.Infof("Found %d device(s) in inventory", len(cfg.Devices))

	if err := os.MkdirAll(cfg.Backup.LocalPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	store, err := gitstore.Open(cfg.Backup.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
	}
	log.Infof("✓ Snapshot store ready at %s", cfg.Backup.LocalPath)

	var notifier domain.Notifier
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(&cfg.Notify.Telegram)
		if err != nil {
			log.Errorf("Failed to initialize Telegram notifier: %v", err)
		} else {
			notifier = tg
			log.Infof("✓ Telegram notifications enabled")
		}
	}

	backupUC := usecase.NewBackup(
		device.NewSSHDialer(&cfg.Backup),
		store,
		notifier,
		initializeMirrors(cfg, log),
		usecase.NewRetryPolicy(retryAttempts, retryBaseDelay, retryMaxDelay, log),
		usecase.NewRetention(cfg.Backup.LocalPath, cfg.Backup.MaxBackups, log),
		health.NewMarker(cfg.Health.MarkerFile),
		log,
		cfg.Backup.LocalPath,
		cfg.Backup.Concurrency,
	)

	return &App{
		config:    cfg,
		logger:    log,
		scheduler: scheduler.New(),
		backupUC:  backupUC,
	}, nil
}

func initializeMirrors(cfg *config.Config, log *logger.Logger) []domain.Mirror {
	var mirrors []domain.Mirror

	for _, mirrorCfg := range cfg.GetEnabledMirrors() {
		var m domain.Mirror
		var err error

		switch mirrorCfg.Type {
		case "s3":
			m, err = mirror.NewS3(&mirrorCfg)
			if err != nil {
				log.Errorf("Failed to initialize S3 mirror: %v", err)
				continue
			}
			log.Infof("✓ S3 mirror enabled (bucket: %s)", mirrorCfg.Bucket)

		case "gdrive":
			m, err = mirror.NewGDrive(&mirrorCfg)
			if err != nil {
				log.Errorf("Failed to initialize Google Drive mirror: %v", err)
				continue
			}
			log.Infof("✓ Google Drive mirror enabled")

		case "telegram":
			m, err = mirror.NewTelegram(&mirrorCfg)
			if err != nil {
				log.Errorf("Failed to initialize Telegram mirror: %v", err)
				continue
			}
			log.Infof("✓ Telegram mirror enabled")
		}

		if m != nil {
			mirrors = append(mirrors, m)
		}
	}

	return mirrors
}

// Run schedules the backup job in the configured mode and blocks until the
// context is cancelled. Per-job failures are reported and isolated; nothing
// a job does can crash the scheduler loop.
func (a *App) Run(ctx context.Context) error {
	job := func(jobCtx context.Context) error {
		a.backupUC.Run(jobCtx, a.config.Targets())
		return nil
	}

	if a.config.Schedule.IntervalMinutes > 0 {
		interval := time.Duration(a.config.Schedule.IntervalMinutes) * time.Minute
		if err := a.scheduler.Every(interval, job); err != nil {
			return fmt.Errorf("failed to schedule backup: %w", err)
		}
		a.logger.Infof("Scheduled backup every %s", interval)
	} else {
		if err := a.scheduler.DailyAt(a.config.Schedule.DailyTime, job); err != nil {
			return fmt.Errorf("failed to schedule backup: %w", err)
		}
		a.logger.Infof("Scheduled backup daily at %s", a.config.Schedule.DailyTime)
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started successfully")

	<-ctx.Done()
	return nil
}

// RunOnce executes a single backup job and returns an error when any device
// failed, for manual runs that want a meaningful exit code.
func (a *App) RunOnce(ctx context.Context) error {
	report := a.backupUC.Run(ctx, a.config.Targets())

	if failed := len(report.Failures()); failed > 0 {
		return fmt.Errorf("%d of %d device(s) failed", failed, len(report.Results))
	}
	return nil
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")
	a.scheduler.Stop()
	a.logger.Close()
}
