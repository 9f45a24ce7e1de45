// Package config loads the exchange's session configuration from a YAML
// file with environment-variable overrides, the way
// 0xtitan6-polymarket-mm/internal/config/config.go loads its market maker
// config: github.com/spf13/viper, mapstructure tags, exact-key
// validation.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config maps 1:1 onto the enumerated config keys in spec.md §6. Unknown
// keys in the source YAML are rejected at Load time.
type Config struct {
	MinTickSize         int64   `mapstructure:"min_tick_size"`
	QuoteLifetime       int64   `mapstructure:"quote_lifetime"`
	MaxOrderQty         int64   `mapstructure:"max_order_qty"`
	PositionLimit       int64   `mapstructure:"position_limit"`
	LossLimit           int64   `mapstructure:"loss_limit"`
	MarginThreshold     int64   `mapstructure:"margin_threshold"`
	MarginPenaltyTicks  int64   `mapstructure:"margin_penalty_ticks"`
	MakerFee            int64   `mapstructure:"maker_fee"`
	TakerFee            int64   `mapstructure:"taker_fee"`
	ToxicityAlpha       float64 `mapstructure:"toxicity_alpha"`
	BotLatencyMultiplier float64 `mapstructure:"bot_latency_multiplier"`
	VolatilityCap       float64 `mapstructure:"volatility_cap"`
	ConcentrationFrac   float64 `mapstructure:"concentration_frac"`
	SnapshotDepthN      int     `mapstructure:"snapshot_depth_n"`
	TapeWindow          int     `mapstructure:"tape_window"`
}

// Default returns reasonable defaults for a headless run with no config
// file, matching the shape of
// 0xtitan6-polymarket-mm/internal/config/config.go's DefaultConfig-style
// fallbacks.
func Default() Config {
	return Config{
		MinTickSize:           1,
		QuoteLifetime:         20,
		MaxOrderQty:           1000,
		PositionLimit:         500,
		LossLimit:             -100000,
		MarginThreshold:       -50000,
		MarginPenaltyTicks:    2,
		MakerFee:              -1,
		TakerFee:              2,
		ToxicityAlpha:         0.1,
		BotLatencyMultiplier:  1.0,
		VolatilityCap:         1000,
		ConcentrationFrac:     0.5,
		SnapshotDepthN:        10,
		TapeWindow:            50,
	}
}

var allowedKeys = map[string]struct{}{
	"min_tick_size": {}, "quote_lifetime": {}, "max_order_qty": {},
	"position_limit": {}, "loss_limit": {}, "margin_threshold": {},
	"margin_penalty_ticks": {}, "maker_fee": {}, "taker_fee": {},
	"toxicity_alpha": {}, "bot_latency_multiplier": {}, "volatility_cap": {},
	"concentration_frac": {}, "snapshot_depth_n": {}, "tape_window": {},
}

// Load reads a YAML config file, overriding any key with a TALOS_<KEY>
// environment variable, and rejects files containing keys outside the
// §6 whitelist.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TALOS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	for _, key := range v.AllKeys() {
		if _, ok := allowedKeys[key]; !ok {
			return Config{}, fmt.Errorf("config: unknown key %q", key)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// SetParam applies a single runtime parameter update from a SetParam
// command against the §6 whitelist, mutating cfg in place.
func SetParam(cfg *Config, key, value string) error {
	key = strings.ToLower(key)
	if _, ok := allowedKeys[key]; !ok {
		return fmt.Errorf("config: unknown key %q", key)
	}
	switch key {
	case "min_tick_size":
		return assignInt64(&cfg.MinTickSize, value)
	case "quote_lifetime":
		return assignInt64(&cfg.QuoteLifetime, value)
	case "max_order_qty":
		return assignInt64(&cfg.MaxOrderQty, value)
	case "position_limit":
		return assignInt64(&cfg.PositionLimit, value)
	case "loss_limit":
		return assignInt64(&cfg.LossLimit, value)
	case "margin_threshold":
		return assignInt64(&cfg.MarginThreshold, value)
	case "margin_penalty_ticks":
		return assignInt64(&cfg.MarginPenaltyTicks, value)
	case "maker_fee":
		return assignInt64(&cfg.MakerFee, value)
	case "taker_fee":
		return assignInt64(&cfg.TakerFee, value)
	case "toxicity_alpha":
		return assignFloat64(&cfg.ToxicityAlpha, value)
	case "bot_latency_multiplier":
		return assignFloat64(&cfg.BotLatencyMultiplier, value)
	case "volatility_cap":
		return assignFloat64(&cfg.VolatilityCap, value)
	case "concentration_frac":
		return assignFloat64(&cfg.ConcentrationFrac, value)
	case "snapshot_depth_n":
		return assignInt(&cfg.SnapshotDepthN, value)
	case "tape_window":
		return assignInt(&cfg.TapeWindow, value)
	}
	return nil
}

func assignInt64(dst *int64, value string) error {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	*dst = n
	return nil
}

func assignFloat64(dst *float64, value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	*dst = f
	return nil
}

func assignInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	*dst = n
	return nil
}
