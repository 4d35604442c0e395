// Package config loads deck-engine settings from a TOML file layered over
// built-in defaults. Environment overrides (PORT, DATABASE_URL, REDIS_URL)
// are applied by the caller, not here.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"

	"github.com/weo-soft/StackedDeckClicker-sub003/internal/offline"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/upgrade"
)

// Config is the full engine configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Game      GameConfig      `toml:"game"`
	Catalog   CatalogConfig   `toml:"catalog"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Database  DatabaseConfig  `toml:"database"`
}

// ServerConfig contains HTTP server settings. Durations are strings like
// "10s", parsed on access.
type ServerConfig struct {
	Port            int    `toml:"port"`
	ReadTimeout     string `toml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// GameConfig contains progression tuning.
type GameConfig struct {
	// StartingScore and StartingDecks seed newly created players.
	StartingScore decimal.Decimal `toml:"starting_score"`
	StartingDecks int64           `toml:"starting_decks"`

	// MaxOfflineSeconds caps the simulated offline interval.
	MaxOfflineSeconds float64 `toml:"max_offline_seconds"`

	// Per-level effect rates.
	AutoOpeningRate     float64 `toml:"auto_opening_rate"`      // decks/sec per level
	DeckProductionRate  float64 `toml:"deck_production_rate"`   // decks/sec per level
	RarityBonusPerLevel float64 `toml:"rarity_bonus_per_level"` // percent per level

	// Upgrades maps upgrade type to its cost curve. All six types must be
	// present; overriding one type in TOML requires both fields.
	Upgrades map[string]UpgradeCost `toml:"upgrades"`
}

// UpgradeCost is the purchase-cost curve for one upgrade type.
type UpgradeCost struct {
	BaseCost       decimal.Decimal `toml:"base_cost"`
	CostMultiplier float64         `toml:"cost_multiplier"`
}

// CatalogConfig points at the card catalog file. An empty path serves the
// built-in starter catalog.
type CatalogConfig struct {
	Path string `toml:"path"`
}

// RateLimitConfig bounds per-player draw actions.
type RateLimitConfig struct {
	DrawsPerSecond float64 `toml:"draws_per_second"`
	DrawBurst      int     `toml:"draw_burst"`
}

// DatabaseConfig holds optional storage settings. Empty URL runs the
// in-memory store; empty RedisURL skips the cache layer.
type DatabaseConfig struct {
	URL      string `toml:"url"`
	RedisURL string `toml:"redis_url"`
	CacheTTL string `toml:"cache_ttl"`
}

// Default returns the stock configuration.
func Default() *Config {
	costs := upgrade.DefaultCostParams()
	upgrades := make(map[string]UpgradeCost, len(costs))
	for typ, cp := range costs {
		upgrades[typ] = UpgradeCost{BaseCost: cp.BaseCost, CostMultiplier: cp.CostMultiplier}
	}
	tuning := upgrade.DefaultTuning()

	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     "10s",
			WriteTimeout:    "15s",
			ShutdownTimeout: "5s",
		},
		Game: GameConfig{
			StartingScore:       decimal.NewFromInt(10),
			StartingDecks:       10,
			MaxOfflineSeconds:   offline.DefaultMaxOfflineSeconds,
			AutoOpeningRate:     tuning.AutoOpeningRate,
			DeckProductionRate:  tuning.DeckProductionRate,
			RarityBonusPerLevel: tuning.RarityBonusPerLevel,
			Upgrades:            upgrades,
		},
		Catalog: CatalogConfig{Path: ""},
		RateLimit: RateLimitConfig{
			DrawsPerSecond: 5,
			DrawBurst:      10,
		},
		Database: DatabaseConfig{
			URL:      "",
			RedisURL: "",
			CacheTTL: "30s",
		},
	}
}

// Load reads the TOML file at path over the defaults and validates the
// result. A missing file is not an error; the defaults serve as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks semantic constraints, collecting every problem so an
// operator sees all of them at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be in [1,65535], got %d", c.Server.Port))
	}
	for _, d := range []struct{ name, val string }{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
		{"database.cache_ttl", c.Database.CacheTTL},
	} {
		if _, err := time.ParseDuration(d.val); err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q", d.name, d.val))
		}
	}

	if c.Game.StartingScore.IsNegative() {
		errs = append(errs, "game.starting_score must be >= 0")
	}
	if c.Game.StartingDecks < 0 {
		errs = append(errs, "game.starting_decks must be >= 0")
	}
	if c.Game.MaxOfflineSeconds <= 0 {
		errs = append(errs, "game.max_offline_seconds must be > 0")
	}
	if c.Game.AutoOpeningRate <= 0 {
		errs = append(errs, "game.auto_opening_rate must be > 0")
	}
	if c.Game.DeckProductionRate <= 0 {
		errs = append(errs, "game.deck_production_rate must be > 0")
	}
	if c.Game.RarityBonusPerLevel <= 0 {
		errs = append(errs, "game.rarity_bonus_per_level must be > 0")
	}

	for typ, uc := range c.Game.Upgrades {
		if !upgrade.KnownType(typ) {
			errs = append(errs, fmt.Sprintf("game.upgrades: unknown type %q", typ))
			continue
		}
		if !uc.BaseCost.IsPositive() {
			errs = append(errs, fmt.Sprintf("game.upgrades.%s: base_cost must be > 0", typ))
		}
		if math.IsNaN(uc.CostMultiplier) || math.IsInf(uc.CostMultiplier, 0) || uc.CostMultiplier <= 1 {
			errs = append(errs, fmt.Sprintf("game.upgrades.%s: cost_multiplier must be a finite number > 1", typ))
		}
	}
	for _, typ := range upgrade.Types() {
		if _, ok := c.Game.Upgrades[typ]; !ok {
			errs = append(errs, fmt.Sprintf("game.upgrades: missing type %q", typ))
		}
	}

	if c.RateLimit.DrawsPerSecond <= 0 {
		errs = append(errs, "rate_limit.draws_per_second must be > 0")
	}
	if c.RateLimit.DrawBurst < 1 {
		errs = append(errs, "rate_limit.draw_burst must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ReadTimeoutDuration returns the parsed read timeout.
func (s ServerConfig) ReadTimeoutDuration() (time.Duration, error) {
	return time.ParseDuration(s.ReadTimeout)
}

// WriteTimeoutDuration returns the parsed write timeout.
func (s ServerConfig) WriteTimeoutDuration() (time.Duration, error) {
	return time.ParseDuration(s.WriteTimeout)
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout.
func (s ServerConfig) ShutdownTimeoutDuration() (time.Duration, error) {
	return time.ParseDuration(s.ShutdownTimeout)
}

// CacheTTLDuration returns the parsed redis cache TTL.
func (d DatabaseConfig) CacheTTLDuration() (time.Duration, error) {
	return time.ParseDuration(d.CacheTTL)
}

// CostParams converts the configured cost curves into the resolver's form.
func (g GameConfig) CostParams() map[string]upgrade.CostParams {
	out := make(map[string]upgrade.CostParams, len(g.Upgrades))
	for typ, uc := range g.Upgrades {
		out[typ] = upgrade.CostParams{BaseCost: uc.BaseCost, CostMultiplier: uc.CostMultiplier}
	}
	return out
}

// Tuning converts the configured per-level rates into the resolver's form.
func (g GameConfig) Tuning() upgrade.Tuning {
	return upgrade.Tuning{
		AutoOpeningRate:     g.AutoOpeningRate,
		DeckProductionRate:  g.DeckProductionRate,
		RarityBonusPerLevel: g.RarityBonusPerLevel,
	}
}
