package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/chargeplan/internal/config"
)

const defaultLockKey = "chargeplan:dispatch"

// Config controls when the dispatch sweep fires and how long it may hold the lease.
type Config struct {
	Cron       string
	LockKey    string
	LockTTL    time.Duration
	JobTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Cron:       "0 * * * * *",
		LockKey:    defaultLockKey,
		LockTTL:    50 * time.Second,
		JobTimeout: 45 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.Cron) == "" {
		c.Cron = defaults.Cron
	}
	if strings.TrimSpace(c.LockKey) == "" {
		c.LockKey = defaults.LockKey
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

func ProvideConfig(cfg config.Config) (Config, error) {
	c := Config{
		Cron:       cfg.Dispatch.Cron,
		LockTTL:    cfg.Dispatch.LockTTL,
		JobTimeout: cfg.Dispatch.JobTimeout,
	}.withDefaults()
	if err := ValidateCron(c.Cron); err != nil {
		return Config{}, err
	}
	return c, nil
}

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCron checks a six-field (seconds first) cron spec or a descriptor such as @every 30s.
func ValidateCron(spec string) error {
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid dispatch cron %q: %w", spec, err)
	}
	return nil
}
