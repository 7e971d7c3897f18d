// Package config loads runtime settings from defaults, an optional config
// file and TASKREMIND_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sandeepkv93/taskremind/internal/locale"
	"github.com/sandeepkv93/taskremind/internal/logging"
	"github.com/spf13/viper"
)

const EnvPrefix = "TASKREMIND"

var ErrInvalid = errors.New("config: invalid value")

type Config struct {
	APIBaseURL string
	APIToken   string
	APITimeout time.Duration

	PollInterval         time.Duration
	Locale               string
	LogLevel             string
	DBPath               string
	DesktopNotifications bool
	SchedulerBuffer      int

	BatchSize      int
	ReminderHour   int
	Timezone       string
	ImmediateDelay time.Duration
	OverdueDelay   time.Duration
}

func Default() Config {
	return Config{
		APIBaseURL:           "http://localhost:3000/api",
		APITimeout:           30 * time.Second,
		PollInterval:         time.Minute,
		Locale:               locale.Default,
		LogLevel:             logging.DefaultLevel,
		DBPath:               ".taskremind.db",
		DesktopNotifications: false,
		SchedulerBuffer:      64,
		BatchSize:            5,
		ReminderHour:         9,
		Timezone:             "Local",
		ImmediateDelay:       2 * time.Second,
		OverdueDelay:         3 * time.Second,
	}
}

// Load reads path if given, else config.{json,yaml,toml} from
// $HOME/.config/taskremind if present, then applies the environment. A
// missing default file is not an error.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "taskremind"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config: read: %w", err)
			}
		}
	}
	return fromViper(v), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault("api.base_url", d.APIBaseURL)
	v.SetDefault("api.token", d.APIToken)
	v.SetDefault("api.timeout", d.APITimeout)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("locale", d.Locale)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("desktop_notifications", d.DesktopNotifications)
	v.SetDefault("scheduler_buffer", d.SchedulerBuffer)
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("reminder_hour", d.ReminderHour)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("immediate_delay", d.ImmediateDelay)
	v.SetDefault("overdue_delay", d.OverdueDelay)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) Config {
	return Config{
		APIBaseURL:           strings.TrimSpace(v.GetString("api.base_url")),
		APIToken:             strings.TrimSpace(v.GetString("api.token")),
		APITimeout:           v.GetDuration("api.timeout"),
		PollInterval:         v.GetDuration("poll_interval"),
		Locale:               strings.TrimSpace(v.GetString("locale")),
		LogLevel:             strings.ToUpper(strings.TrimSpace(v.GetString("log_level"))),
		DBPath:               strings.TrimSpace(v.GetString("db_path")),
		DesktopNotifications: v.GetBool("desktop_notifications"),
		SchedulerBuffer:      v.GetInt("scheduler_buffer"),
		BatchSize:            v.GetInt("batch_size"),
		ReminderHour:         v.GetInt("reminder_hour"),
		Timezone:             strings.TrimSpace(v.GetString("timezone")),
		ImmediateDelay:       v.GetDuration("immediate_delay"),
		OverdueDelay:         v.GetDuration("overdue_delay"),
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalid, c.BatchSize))
	}
	if c.ReminderHour < 0 || c.ReminderHour > 23 {
		errs = append(errs, fmt.Errorf("%w: reminder_hour must be 0..23, got %d", ErrInvalid, c.ReminderHour))
	}
	if _, err := locale.Lookup(c.Locale); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("%w: timezone %q: %w", ErrInvalid, c.Timezone, err))
	}
	if !logging.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: poll_interval must be positive", ErrInvalid))
	}
	if c.SchedulerBuffer <= 0 {
		errs = append(errs, fmt.Errorf("%w: scheduler_buffer must be positive", ErrInvalid))
	}
	if c.ImmediateDelay <= 0 || c.OverdueDelay <= 0 {
		errs = append(errs, fmt.Errorf("%w: notification delays must be positive", ErrInvalid))
	}
	return errors.Join(errs...)
}

// Location resolves Timezone; "Local" and "" mean the process time zone.
func (c Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
