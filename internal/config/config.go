package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/semmidev/netvault/internal/domain"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Devices  []DeviceConfig `mapstructure:"devices"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Health   HealthConfig   `mapstructure:"health"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Mirrors  []MirrorConfig `mapstructure:"mirrors"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// DefaultsConfig holds process-wide fallbacks applied to inventory entries
// that do not carry their own values.
type DefaultsConfig struct {
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type DeviceConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Command  string `mapstructure:"command"`
}

type BackupConfig struct {
	LocalPath       string        `mapstructure:"local_path"`
	MaxBackups      int           `mapstructure:"max_backups"`
	Concurrency     int           `mapstructure:"concurrency"`
	Command         string        `mapstructure:"command"`
	IdentityCommand string        `mapstructure:"identity_command"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	CommandTimeout  time.Duration `mapstructure:"command_timeout"`
}

// ScheduleConfig selects exactly one of the two scheduling modes: a fixed
// interval or a fixed daily time-of-day.
type ScheduleConfig struct {
	IntervalMinutes int    `mapstructure:"interval_minutes"`
	DailyTime       string `mapstructure:"daily_time"`
}

type HealthConfig struct {
	MarkerFile string `mapstructure:"marker_file"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type MirrorConfig struct {
	Type    string `mapstructure:"type"`
	Enabled bool   `mapstructure:"enabled"`

	// AWS S3
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`

	// Google Drive
	CredentialsFile string `mapstructure:"credentials_file"`
	FolderID        string `mapstructure:"folder_id"`

	// Telegram
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("app.name", "netvault")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("defaults.port", 22)
	v.SetDefault("backup.local_path", "/backups")
	v.SetDefault("backup.max_backups", 10)
	v.SetDefault("backup.concurrency", 10)
	v.SetDefault("backup.command", "show configuration | display set")
	v.SetDefault("backup.identity_command", "show version | match Hostname")
	v.SetDefault("backup.connect_timeout", "30s")
	v.SetDefault("backup.command_timeout", "60s")
	v.SetDefault("schedule.interval_minutes", 0)
	v.SetDefault("health.marker_file", "/tmp/netvault_last_run")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate is fail-closed: any invalid inventory entry or knob aborts the
// whole load before a single device is contacted.
func (c *Config) Validate() error {
	if len(c.Devices) == 0 {
		return fmt.Errorf("at least one device is required")
	}

	for i, d := range c.Devices {
		if strings.TrimSpace(d.Host) == "" {
			return fmt.Errorf("devices[%d]: host is required", i)
		}
		if d.Port < 0 || d.Port > 65535 {
			return fmt.Errorf("devices[%d]: port %d out of range", i, d.Port)
		}
	}

	if c.Backup.LocalPath == "" {
		return fmt.Errorf("backup.local_path is required")
	}
	if c.Backup.MaxBackups <= 0 {
		return fmt.Errorf("backup.max_backups must be a positive integer")
	}
	if c.Backup.Concurrency <= 0 {
		return fmt.Errorf("backup.concurrency must be a positive integer")
	}

	interval := c.Schedule.IntervalMinutes > 0
	daily := c.Schedule.DailyTime != ""
	if interval && daily {
		return fmt.Errorf("schedule.interval_minutes and schedule.daily_time are mutually exclusive")
	}
	if !interval && !daily {
		return fmt.Errorf("either schedule.interval_minutes or schedule.daily_time is required")
	}
	if daily {
		if _, err := time.Parse("15:04", c.Schedule.DailyTime); err != nil {
			return fmt.Errorf("schedule.daily_time: expected HH:MM, got %q", c.Schedule.DailyTime)
		}
	}

	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram: bot_token and chat_id are required when enabled")
		}
	}

	for i, m := range c.Mirrors {
		if !m.Enabled {
			continue
		}
		switch m.Type {
		case "s3":
			if m.Region == "" || m.Bucket == "" {
				return fmt.Errorf("mirrors[%d]: region and bucket are required for s3", i)
			}
		case "gdrive":
			if m.CredentialsFile == "" || m.FolderID == "" {
				return fmt.Errorf("mirrors[%d]: credentials_file and folder_id are required for gdrive", i)
			}
		case "telegram":
			if m.BotToken == "" || m.ChatID == "" {
				return fmt.Errorf("mirrors[%d]: bot_token and chat_id are required for telegram", i)
			}
		default:
			return fmt.Errorf("mirrors[%d]: unknown type %q", i, m.Type)
		}
	}

	return nil
}

// Targets resolves the inventory against the process-wide defaults.
// Credentials may still be empty after resolution; the per-device validate
// step rejects those before any session is opened.
func (c *Config) Targets() []domain.Target {
	targets := make([]domain.Target, 0, len(c.Devices))
	for _, d := range c.Devices {
		t := domain.Target{
			Host:            strings.TrimSpace(d.Host),
			Port:            d.Port,
			Username:        d.Username,
			Password:        d.Password,
			Command:         d.Command,
			IdentityCommand: c.Backup.IdentityCommand,
		}
		if t.Port == 0 {
			t.Port = c.Defaults.Port
		}
		if t.Username == "" {
			t.Username = c.Defaults.Username
		}
		if t.Password == "" {
			t.Password = c.Defaults.Password
		}
		if t.Command == "" {
			t.Command = c.Backup.Command
		}
		targets = append(targets, t)
	}
	return targets
}

func (c *Config) GetEnabledMirrors() []MirrorConfig {
	var enabled []MirrorConfig
	for _, m := range c.Mirrors {
		if m.Enabled {
			enabled = append(enabled, m)
		}
	}
	return enabled
}
