// cmd/healthcheck/main.go
//
// Container health probe. Exits 0 when the backup daemon looks healthy:
// the backup directory is writable and the liveness marker has been
// touched recently enough for the configured schedule.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/semmidev/netvault/internal/config"
	"github.com/semmidev/netvault/internal/infrastructure/health"
)

// dailyAllowance covers a daily run plus one hour of slack.
const dailyAllowance = 25 * time.Hour

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	if err := check(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK: healthy")
}

func check(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := checkWritable(cfg.Backup.LocalPath); err != nil {
		return err
	}

	return checkMarker(cfg)
}

func checkWritable(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("backup directory %s: %w", dir, err)
	}

	probe := filepath.Join(dir, ".healthcheck")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return fmt.Errorf("backup directory not writable: %w", err)
	}
	os.Remove(probe)
	return nil
}

func checkMarker(cfg *config.Config) error {
	marker := health.NewMarker(cfg.Health.MarkerFile)

	age, err := marker.Age()
	if os.IsNotExist(err) {
		// Before the first scheduled run the marker does not exist yet.
		return nil
	}
	if err != nil {
		return fmt.Errorf("read liveness marker: %w", err)
	}

	allowance := dailyAllowance
	if cfg.Schedule.IntervalMinutes > 0 {
		allowance = 2 * time.Duration(cfg.Schedule.IntervalMinutes) * time.Minute
	}

	if age > allowance {
		return fmt.Errorf("last run was %s ago (max %s)",
			age.Round(time.Minute), allowance)
	}
	return nil
}
