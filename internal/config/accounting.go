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

// AccountingConfig holds the tunables of the accounting sync workflow.
type AccountingConfig struct {
	TokenRefreshSkew    time.Duration `mapstructure:"tokenRefreshSkew"`
	ChartCacheTTL       time.Duration `mapstructure:"chartCacheTTL"`
	SyncLockTTL         time.Duration `mapstructure:"syncLockTTL"`
	RemoteTimeout       time.Duration `mapstructure:"remoteTimeout"`
	FallbackAccountType string        `mapstructure:"fallbackAccountType"`
	DefaultCurrency     string        `mapstructure:"defaultCurrency"`
}

func DefaultAccountingConfig() AccountingConfig {
	return AccountingConfig{
		TokenRefreshSkew:    5 * time.Minute,
		ChartCacheTTL:       30 * time.Minute,
		SyncLockTTL:         45 * time.Second,
		RemoteTimeout:       30 * time.Second,
		FallbackAccountType: "Revenue",
		DefaultCurrency:     "USD",
	}
}

type AccountingConfigHolder struct {
	current atomic.Value // holds AccountingConfig
}

// NewStaticAccountingConfigHolder returns a holder that never reloads.
func NewStaticAccountingConfigHolder(cfg AccountingConfig) *AccountingConfigHolder {
	holder := &AccountingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewAccountingConfigHolder(log *zap.Logger) (*AccountingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("accounting")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/caskr/config")
	v.AddConfigPath("/etc/caskr")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CASKR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAccountingConfig()
	v.SetDefault("accounting.tokenRefreshSkew", defaults.TokenRefreshSkew)
	v.SetDefault("accounting.chartCacheTTL", defaults.ChartCacheTTL)
	v.SetDefault("accounting.syncLockTTL", defaults.SyncLockTTL)
	v.SetDefault("accounting.remoteTimeout", defaults.RemoteTimeout)
	v.SetDefault("accounting.fallbackAccountType", defaults.FallbackAccountType)
	v.SetDefault("accounting.defaultCurrency", defaults.DefaultCurrency)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg AccountingConfig
	if err := v.UnmarshalKey("accounting", &cfg); err != nil {
		return nil, err
	}
	if err := validateAccountingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticAccountingConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated AccountingConfig
		if err := v.UnmarshalKey("accounting", &updated); err != nil {
			log.Warn("accounting config reload failed", zap.Error(err))
			return
		}
		if err := validateAccountingConfig(updated); err != nil {
			log.Warn("invalid accounting config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("accounting config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *AccountingConfigHolder) Get() AccountingConfig {
	if h == nil {
		return DefaultAccountingConfig()
	}
	cfg, ok := h.current.Load().(AccountingConfig)
	if !ok {
		return DefaultAccountingConfig()
	}
	return cfg
}

func validateAccountingConfig(cfg AccountingConfig) error {
	if cfg.TokenRefreshSkew < 0 {
		return errors.New("accounting.tokenRefreshSkew cannot be negative")
	}
	if cfg.ChartCacheTTL <= 0 {
		return errors.New("accounting.chartCacheTTL must be positive")
	}
	if cfg.RemoteTimeout <= 0 {
		return errors.New("accounting.remoteTimeout must be positive")
	}
	// A lock shorter than one remote call could lapse before the call returns.
	if cfg.SyncLockTTL <= cfg.RemoteTimeout {
		return errors.New("accounting.syncLockTTL must exceed accounting.remoteTimeout")
	}
	if strings.TrimSpace(cfg.DefaultCurrency) == "" {
		return errors.New("accounting.defaultCurrency cannot be empty")
	}
	return nil
}
