package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DispatchConfig holds dispatch settings that can change while the process runs.
type DispatchConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	SendTimeout time.Duration `mapstructure:"sendTimeout"`
	MaxPerSweep int           `mapstructure:"maxPerSweep"`
}

func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		Enabled:     getenvBool("DISPATCH_ENABLED", true),
		SendTimeout: 5 * time.Second,
		MaxPerSweep: 0,
	}
}

type DispatchConfigHolder struct {
	current atomic.Value // holds DispatchConfig
}

// NewDispatchConfigHolder reads dispatch.yml when present and watches it for changes.
func NewDispatchConfigHolder(log *zap.Logger) (*DispatchConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.dispatch")

	v := viper.New()
	v.SetConfigName("dispatch")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/chargeplan")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CHARGEPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultDispatchConfig()
	v.SetDefault("dispatch.enabled", defaults.Enabled)
	v.SetDefault("dispatch.sendTimeout", defaults.SendTimeout)
	v.SetDefault("dispatch.maxPerSweep", defaults.MaxPerSweep)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		watch = false
	}

	cfg, err := decodeDispatchConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticDispatchConfigHolder(cfg)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeDispatchConfig(v)
		if err != nil {
			log.Warn("dispatch config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("dispatch config reloaded",
			zap.String("file", e.Name),
			zap.Bool("enabled", updated.Enabled),
			zap.Duration("send_timeout", updated.SendTimeout),
			zap.Int("max_per_sweep", updated.MaxPerSweep),
		)
	})

	return holder, nil
}

// NewStaticDispatchConfigHolder returns a holder that never reloads.
func NewStaticDispatchConfigHolder(cfg DispatchConfig) *DispatchConfigHolder {
	holder := &DispatchConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *DispatchConfigHolder) Get() DispatchConfig {
	if h == nil {
		return DefaultDispatchConfig()
	}
	return h.current.Load().(DispatchConfig)
}

func decodeDispatchConfig(v *viper.Viper) (DispatchConfig, error) {
	var cfg DispatchConfig
	if err := v.UnmarshalKey("dispatch", &cfg); err != nil {
		return DispatchConfig{}, err
	}
	if err := validateDispatchConfig(cfg); err != nil {
		return DispatchConfig{}, err
	}
	return cfg, nil
}

func validateDispatchConfig(cfg DispatchConfig) error {
	if cfg.SendTimeout <= 0 {
		return errors.New("dispatch.sendTimeout must be positive")
	}
	if cfg.MaxPerSweep < 0 {
		return errors.New("dispatch.maxPerSweep cannot be negative")
	}
	return nil
}
