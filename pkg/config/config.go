// Package config loads flowsketch settings from TOML.
//
// Settings come from $XDG_CONFIG_HOME/flowsketch/config.toml (or
// ~/.config/flowsketch/config.toml). A missing default file is fine and
// yields [Default]; a file named explicitly must exist. Keys the decoder
// does not recognize are rejected so typos surface early.
//
//	[log]
//	level = "info"
//
//	[layout]
//	engine = "hierarchy"
//
//	[layout.force]
//	tick_interval = "16ms"
//
//	[palette]
//	k = "#000000"
//
//	[clipboard]
//	backend = "file"
//
//	[cache]
//	backend = "redis"
//	redis_addr = "localhost:6379"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowsketch/pkg/cache"
	"github.com/matzehuels/flowsketch/pkg/clipboard"
	"github.com/matzehuels/flowsketch/pkg/diagram"
	"github.com/matzehuels/flowsketch/pkg/errors"
	"github.com/matzehuels/flowsketch/pkg/layout"
	"github.com/matzehuels/flowsketch/pkg/layout/force"
	"github.com/matzehuels/flowsketch/pkg/layout/hierarchy"
	"github.com/matzehuels/flowsketch/pkg/session"
)

// Config is the root of the configuration file.
type Config struct {
	Log       LogConfig         `toml:"log"`
	Placement PlacementConfig   `toml:"placement"`
	Layout    LayoutConfig      `toml:"layout"`
	Palette   map[string]string `toml:"palette"`
	Clipboard ClipboardConfig   `toml:"clipboard"`
	Cache     CacheConfig       `toml:"cache"`
	Server    ServerConfig      `toml:"server"`
	Notify    NotifyConfig      `toml:"notify"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// PlacementConfig positions nodes created by add, awi and col.
type PlacementConfig struct {
	VerticalOffset float64 `toml:"vertical_offset"`
	ColumnGap      float64 `toml:"column_gap"`
}

type LayoutConfig struct {
	Engine    string          `toml:"engine"`
	FreeTail  int             `toml:"free_tail"`
	NodeWidth float64         `toml:"node_width"`
	Force     ForceConfig     `toml:"force"`
	Hierarchy HierarchyConfig `toml:"hierarchy"`
}

type ForceConfig struct {
	LinkDistance      float64       `toml:"link_distance"`
	ChargeStrength    float64       `toml:"charge_strength"`
	ChargeDistanceMax float64       `toml:"charge_distance_max"`
	AlphaMin          float64       `toml:"alpha_min"`
	VelocityDecay     float64       `toml:"velocity_decay"`
	TickInterval      time.Duration `toml:"tick_interval"`
	MaxTicks          int           `toml:"max_ticks"`
}

type HierarchyConfig struct {
	RankSep float64 `toml:"rank_sep"`
	NodeSep float64 `toml:"node_sep"`
	RankDir string  `toml:"rank_dir"`
}

type ClipboardConfig struct {
	Backend   string        `toml:"backend"`
	Path      string        `toml:"path"`
	RedisAddr string        `toml:"redis_addr"`
	RedisKey  string        `toml:"redis_key"`
	TTL       time.Duration `toml:"ttl"`
}

// CacheConfig selects where rendered SVG, PNG and PDF output is kept.
type CacheConfig struct {
	Backend    string        `toml:"backend"`
	Dir        string        `toml:"dir"`
	RedisAddr  string        `toml:"redis_addr"`
	Prefix     string        `toml:"prefix"`
	TTL        time.Duration `toml:"ttl"`
	MaxEntries int           `toml:"max_entries"`
}

type ServerConfig struct {
	Addr    string        `toml:"addr"`
	IdleTTL time.Duration `toml:"idle_ttl"`
}

// NotifyConfig enables NATS change notifications when NATSURL is set.
type NotifyConfig struct {
	NATSURL       string `toml:"nats_url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// Default returns the built-in settings.
func Default() Config {
	fc := force.DefaultConfig()
	hc := hierarchy.DefaultConfig()
	return Config{
		Log: LogConfig{Level: "info"},
		Placement: PlacementConfig{
			VerticalOffset: diagram.DefaultVerticalOffset,
			ColumnGap:      diagram.DefaultColumnGap,
		},
		Layout: LayoutConfig{
			Engine:    force.Name,
			FreeTail:  layout.DefaultFreeTail,
			NodeWidth: layout.DefaultNodeWidth,
			Force: ForceConfig{
				LinkDistance:      fc.LinkDistance,
				ChargeStrength:    fc.ChargeStrength,
				ChargeDistanceMax: fc.ChargeDistanceMax,
				AlphaMin:          fc.AlphaMin,
				VelocityDecay:     fc.VelocityDecay,
				TickInterval:      fc.TickInterval,
				MaxTicks:          fc.MaxTicks,
			},
			Hierarchy: HierarchyConfig{RankSep: hc.RankSep, NodeSep: hc.NodeSep, RankDir: hc.RankDir},
		},
		Palette:   map[string]string{},
		Clipboard: ClipboardConfig{Backend: clipboard.BackendOSC52},
		Cache:     CacheConfig{Backend: cache.BackendFile, TTL: 7 * 24 * time.Hour, MaxEntries: cache.DefaultMaxEntries},
		Server:    ServerConfig{Addr: ":8080", IdleTTL: session.DefaultIdleTTL},
		Notify:    NotifyConfig{SubjectPrefix: "flowsketch"},
	}
}

// DefaultPath returns the default configuration file location.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "flowsketch", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", "flowsketch", "config.toml"), nil
}

// Load reads the file at path over the defaults and validates the result.
// An empty path loads DefaultPath if it exists.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "load %s", path)
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults and validates the result.
func Parse(text string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(text, &cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.ErrCodeInvalidConfig, "unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail later or silently.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "log.level")
	}
	if c.Placement.VerticalOffset <= 0 || c.Placement.ColumnGap <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "placement distances must be positive")
	}

	engines := []string{force.Name, hierarchy.Name, "dot"}
	if !slices.Contains(engines, c.Layout.Engine) {
		return errors.New(errors.ErrCodeInvalidConfig, "layout.engine %q is not one of %s", c.Layout.Engine, strings.Join(engines, ", "))
	}
	if c.Layout.FreeTail < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "layout.free_tail must not be negative")
	}
	if c.Layout.NodeWidth <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "layout.node_width must be positive")
	}
	f := c.Layout.Force
	if f.LinkDistance <= 0 || f.ChargeDistanceMax <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "layout.force distances must be positive")
	}
	if f.AlphaMin <= 0 || f.AlphaMin >= 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "layout.force.alpha_min must be in (0, 1)")
	}
	if f.VelocityDecay <= 0 || f.VelocityDecay >= 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "layout.force.velocity_decay must be in (0, 1)")
	}
	if f.TickInterval < 0 || f.MaxTicks < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "layout.force tick settings must not be negative")
	}
	h := c.Layout.Hierarchy
	if h.RankSep <= 0 || h.NodeSep <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "layout.hierarchy separations must be positive")
	}
	switch strings.ToUpper(h.RankDir) {
	case "TB", "BT", "LR", "RL":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "layout.hierarchy.rank_dir %q is not one of TB, BT, LR, RL", h.RankDir)
	}

	for token, color := range c.Palette {
		if utf8.RuneCountInString(token) != 1 {
			return errors.New(errors.ErrCodeInvalidConfig, "palette token %q must be a single character", token)
		}
		if color == "" || strings.ContainsFunc(color, func(r rune) bool { return r == ' ' || r == '\t' }) {
			return errors.New(errors.ErrCodeInvalidConfig, "palette color for %q must be a non-empty token", token)
		}
	}

	if !slices.Contains(clipboard.Backends, strings.ToLower(c.Clipboard.Backend)) {
		return errors.New(errors.ErrCodeInvalidConfig, "clipboard.backend %q is not one of %s", c.Clipboard.Backend, strings.Join(clipboard.Backends, ", "))
	}
	if strings.EqualFold(c.Clipboard.Backend, clipboard.BackendRedis) && c.Clipboard.RedisAddr == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "clipboard.redis_addr is required for the redis backend")
	}
	if !slices.Contains(cache.Backends, strings.ToLower(c.Cache.Backend)) {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.backend %q is not one of %s", c.Cache.Backend, strings.Join(cache.Backends, ", "))
	}
	if strings.EqualFold(c.Cache.Backend, cache.BackendRedis) && c.Cache.RedisAddr == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.redis_addr is required for the redis backend")
	}
	if c.Cache.MaxEntries < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.max_entries must not be negative")
	}
	if c.Clipboard.TTL < 0 || c.Cache.TTL < 0 || c.Server.IdleTTL < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "durations must not be negative")
	}
	return nil
}

// Level returns the configured log level.
func (c Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// ClipboardOptions converts the [clipboard] section for clipboard.New.
func (c Config) ClipboardOptions() clipboard.Config {
	return clipboard.Config{
		Backend:   c.Clipboard.Backend,
		Path:      c.Clipboard.Path,
		RedisAddr: c.Clipboard.RedisAddr,
		RedisKey:  c.Clipboard.RedisKey,
		TTL:       c.Clipboard.TTL,
	}
}

// CacheOptions converts the [cache] section for cache.New.
func (c Config) CacheOptions() cache.Config {
	return cache.Config{
		Backend:    c.Cache.Backend,
		Dir:        c.Cache.Dir,
		RedisAddr:  c.Cache.RedisAddr,
		Prefix:     c.Cache.Prefix,
		MaxEntries: c.Cache.MaxEntries,
	}
}

// SessionOptions converts placement, layout and palette settings for
// session.New. Callers add the logger, clipboard and publisher.
func (c Config) SessionOptions() session.Options {
	f, h := c.Layout.Force, c.Layout.Hierarchy
	return session.Options{
		Placer: diagram.Placer{
			VerticalOffset: c.Placement.VerticalOffset,
			ColumnGap:      c.Placement.ColumnGap,
		},
		Palette:       diagram.DefaultPalette().WithOverrides(c.Palette),
		DefaultEngine: c.Layout.Engine,
		FreeTail:      c.Layout.FreeTail,
		NodeWidth:     c.Layout.NodeWidth,
		Force: force.Config{
			LinkDistance:      f.LinkDistance,
			ChargeStrength:    f.ChargeStrength,
			ChargeDistanceMax: f.ChargeDistanceMax,
			AlphaMin:          f.AlphaMin,
			VelocityDecay:     f.VelocityDecay,
			TickInterval:      f.TickInterval,
			MaxTicks:          f.MaxTicks,
			Seed:              force.DefaultConfig().Seed,
		},
		Hierarchy:     hierarchy.Config{RankSep: h.RankSep, NodeSep: h.NodeSep, RankDir: h.RankDir},
		SubjectPrefix: c.Notify.SubjectPrefix,
	}
}
