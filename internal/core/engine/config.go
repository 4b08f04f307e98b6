package engine

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/simforge/simforge/internal/core/assets"
	"github.com/simforge/simforge/internal/core/script"
)

// Config holds the engine's tuning knobs. Zero values select defaults, so a
// partial YAML file or environment is always usable.
type Config struct {
	// TickRate is the number of update passes per second when Run drives
	// the loop.
	TickRate int `yaml:"tick_rate" env:"SIMFORGE_TICK_RATE"`

	// UpdateHook is broadcast to every attached context once per tick.
	// Empty disables the broadcast.
	UpdateHook     string `yaml:"update_hook" env:"SIMFORGE_UPDATE_HOOK"`
	UpdatePriority int    `yaml:"update_priority" env:"SIMFORGE_UPDATE_PRIORITY"`

	// MaxDispatchRounds bounds event feedback loops inside one dispatch
	// pass. 0 selects the default, negative disables the cap.
	MaxDispatchRounds int `yaml:"max_dispatch_rounds" env:"SIMFORGE_MAX_DISPATCH_ROUNDS"`

	// AssetWorkers caps concurrent asset fetches.
	AssetWorkers int `yaml:"asset_workers" env:"SIMFORGE_ASSET_WORKERS"`

	// MaxAssetBytes rejects descriptor or script assets larger than this.
	// 0 selects the default, negative disables the limit.
	MaxAssetBytes int64 `yaml:"max_asset_bytes" env:"SIMFORGE_MAX_ASSET_BYTES"`
}

const (
	DefaultTickRate   = 30
	DefaultUpdateHook = "on_update"
)

func NewDefaultConfig() Config {
	return Config{
		TickRate:          DefaultTickRate,
		UpdateHook:        DefaultUpdateHook,
		MaxDispatchRounds: script.DefaultMaxDispatchRounds,
		AssetWorkers:      assets.DefaultWorkers,
		MaxAssetBytes:     assets.DefaultMaxAssetBytes,
	}
}

func (c Config) withDefaults() Config {
	if c.TickRate <= 0 {
		c.TickRate = DefaultTickRate
	}
	return c
}

// LoadConfig reads YAML config over the defaults.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := NewDefaultConfig()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg.withDefaults(), nil
}

// LoadConfigFile reads YAML config from a file over the defaults.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

// ConfigFromEnv reads SIMFORGE_* environment overrides over the defaults.
func ConfigFromEnv() (Config, error) {
	cfg := NewDefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg.withDefaults(), nil
}

func (c Config) tickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

func (c Config) assetConfig() assets.Config {
	return assets.Config{
		Workers:       c.AssetWorkers,
		MaxAssetBytes: c.MaxAssetBytes,
	}
}

func (c Config) hostConfig() script.Config {
	return script.Config{MaxDispatchRounds: c.MaxDispatchRounds}
}
