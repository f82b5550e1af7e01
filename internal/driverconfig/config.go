// Package driverconfig loads go-minixfs's own tunables: which buffer
// cache mode to default to, the per-device-class auto-mount policy, and
// mount timeouts. It is deliberately separate from internal/volcfg, which
// persists the user-visible label->mountpoint bindings described in
// spec.md §4.7/§6 — that store has a pinned wire format the spec names
// field by field and is never routed through viper.
package driverconfig

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the driver-wide defaults.
type Config struct {
	// DefaultCacheMode is "wtcache" (write-through) or "wbcache"
	// (write-back, the default per spec.md §4.6 mount contract).
	DefaultCacheMode string `mapstructure:"default_cache_mode"`

	// AutoMountATA controls whether ATA-class devices auto-mount by
	// default (spec.md §4.8 says they do not, by default).
	AutoMountATA bool `mapstructure:"auto_mount_ata"`

	// AutoMountOther controls the default for every other device class.
	AutoMountOther bool `mapstructure:"auto_mount_other"`

	// MountTimeout is loaded from configuration, but no code in this
	// module reads it: mount attempts are not time-bounded. MFS itself
	// has no cancellation (spec.md §5).
	MountTimeout time.Duration `mapstructure:"mount_timeout"`

	// ConfigStorePath is the default location of the VolCfg document.
	ConfigStorePath string `mapstructure:"config_store_path"`
}

// Load reads driver configuration the way internal/disk.LoadDMGConfig does
// in the teacher repo: sensible defaults, optional file, environment
// override, tolerant of a missing config file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("minixfs-config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.minixfs")
	v.AddConfigPath("/etc/minixfs")

	v.SetDefault("default_cache_mode", "wbcache")
	v.SetDefault("auto_mount_ata", false)
	v.SetDefault("auto_mount_other", true)
	v.SetDefault("mount_timeout", 30*time.Second)
	v.SetDefault("config_store_path", "/w/cfg/volsrv.conf")

	v.SetEnvPrefix("MINIXFS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading driver config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling driver config: %w", err)
	}

	return &cfg, nil
}

// WriteThrough reports whether mode selects write-through caching. Any
// literal other than "wtcache" is write-back, per spec.md §7.
func WriteThrough(mode string) bool {
	return mode == "wtcache"
}
