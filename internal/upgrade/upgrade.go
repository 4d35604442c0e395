// Package upgrade resolves purchase costs and effect magnitudes from an
// upgrade's type and level.
//
// All formulas are pure functions of (type, level). Costs use
// shopspring/decimal end to end — never float64 for money — so the
// exponential cost curve stays exact at every level. A negative level is
// clamped to 0 before any formula; an unrecognized type is a programming
// error and fails with ErrUnknownUpgradeType.
package upgrade

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Supported upgrade types. The names are the wire format used in player
// state, the HTTP API, and the draw ledger.
const (
	TypeAutoOpening        = "autoOpening"
	TypeImprovedRarity     = "improvedRarity"
	TypeLuckyDrop          = "luckyDrop"
	TypeMultidraw          = "multidraw"
	TypeDeckProduction     = "deckProduction"
	TypeSceneCustomization = "sceneCustomization"
)

var validTypes = map[string]bool{
	TypeAutoOpening:        true,
	TypeImprovedRarity:     true,
	TypeLuckyDrop:          true,
	TypeMultidraw:          true,
	TypeDeckProduction:     true,
	TypeSceneCustomization: true,
}

// ErrUnknownUpgradeType is returned when a type is not one of the supported
// constants. This indicates bad data or a programming error, never user
// input; callers log it rather than defaulting silently.
var ErrUnknownUpgradeType = errors.New("upgrade: unknown upgrade type")

// Types returns all upgrade types in a stable order.
func Types() []string {
	return []string{
		TypeAutoOpening,
		TypeImprovedRarity,
		TypeLuckyDrop,
		TypeMultidraw,
		TypeDeckProduction,
		TypeSceneCustomization,
	}
}

// KnownType reports whether typ is a supported upgrade type.
func KnownType(typ string) bool {
	return validTypes[typ]
}

// Upgrade is one entry in a player's upgrade collection. Level starts at 0
// and is mutated only by purchase operations.
type Upgrade struct {
	Type           string          `json:"type"`
	Level          int             `json:"level"`
	BaseCost       decimal.Decimal `json:"base_cost"`
	CostMultiplier float64         `json:"cost_multiplier"` // > 1, typically 1.5–2.0
}

// CostParams is the purchase-cost curve for one upgrade type.
type CostParams struct {
	BaseCost       decimal.Decimal
	CostMultiplier float64
}

// DefaultCostParams returns the stock cost curve per upgrade type.
func DefaultCostParams() map[string]CostParams {
	return map[string]CostParams{
		TypeAutoOpening:        {BaseCost: decimal.NewFromInt(50), CostMultiplier: 1.7},
		TypeImprovedRarity:     {BaseCost: decimal.NewFromInt(75), CostMultiplier: 1.8},
		TypeLuckyDrop:          {BaseCost: decimal.NewFromInt(100), CostMultiplier: 2.0},
		TypeMultidraw:          {BaseCost: decimal.NewFromInt(150), CostMultiplier: 1.9},
		TypeDeckProduction:     {BaseCost: decimal.NewFromInt(40), CostMultiplier: 1.6},
		TypeSceneCustomization: {BaseCost: decimal.NewFromInt(200), CostMultiplier: 1.5},
	}
}

// Collection is a player's upgrade set, one entry per type, keyed by type.
type Collection map[string]Upgrade

// NewCollection builds a level-0 collection covering every upgrade type.
func NewCollection(costs map[string]CostParams) Collection {
	c := make(Collection, len(validTypes))
	for _, typ := range Types() {
		cp := costs[typ]
		c[typ] = Upgrade{Type: typ, Level: 0, BaseCost: cp.BaseCost, CostMultiplier: cp.CostMultiplier}
	}
	return c
}

// CollectionFromLevels rebuilds a collection from persisted per-type levels.
// Types absent from levels default to 0; unknown keys are ignored.
func CollectionFromLevels(levels map[string]int, costs map[string]CostParams) Collection {
	c := NewCollection(costs)
	for typ, lvl := range levels {
		if u, ok := c[typ]; ok {
			u.Level = lvl
			c[typ] = u
		}
	}
	return c
}

// Level returns the clamped level for an upgrade type, 0 when absent.
func (c Collection) Level(typ string) int {
	u, ok := c[typ]
	if !ok {
		return 0
	}
	return clampLevel(u.Level)
}

// Tuning holds the rate constants behind effect magnitudes.
type Tuning struct {
	// AutoOpeningRate is decks auto-opened per second per level.
	AutoOpeningRate float64

	// DeckProductionRate is decks produced per second per level.
	DeckProductionRate float64

	// RarityBonusPerLevel is the percent added to non-common card weights
	// per improvedRarity level.
	RarityBonusPerLevel float64
}

// DefaultTuning returns the stock rate constants.
func DefaultTuning() Tuning {
	return Tuning{
		AutoOpeningRate:     0.1,
		DeckProductionRate:  0.05,
		RarityBonusPerLevel: 10,
	}
}

// Resolver maps an upgrade's level to its cost and effect magnitude.
// It is stateless — upgrade state is passed as arguments, not stored.
type Resolver struct {
	tuning Tuning
}

// NewResolver creates a resolver with the given rate constants.
func NewResolver(t Tuning) *Resolver {
	return &Resolver{tuning: t}
}

// Cost computes the purchase price for the next level:
//
//	cost = ceil(baseCost * costMultiplier^level)
//
// The power is taken in exact decimal arithmetic. float64 rounds 50 * 1.7
// to 85.00000000000001, and the ceil would overcharge that by one.
func (r *Resolver) Cost(u Upgrade) decimal.Decimal {
	lvl := clampLevel(u.Level)
	mult := decimal.NewFromFloat(u.CostMultiplier)
	factor := decimal.NewFromInt(1)
	for i := 0; i < lvl; i++ {
		factor = factor.Mul(mult)
	}
	return u.BaseCost.Mul(factor).Ceil()
}

// CanAfford reports whether currentScore covers the upgrade's cost.
func (r *Resolver) CanAfford(u Upgrade, currentScore decimal.Decimal) bool {
	return currentScore.GreaterThanOrEqual(r.Cost(u))
}

// Effect returns the upgrade's effect magnitude. The unit depends on type:
// decks/sec for autoOpening and deckProduction, a percent for
// improvedRarity, a draw count for luckyDrop (best-of-N) and multidraw
// (batch size), and the unlocked scene count for sceneCustomization.
func (r *Resolver) Effect(u Upgrade) (float64, error) {
	lvl := clampLevel(u.Level)
	switch u.Type {
	case TypeAutoOpening:
		return float64(lvl) * r.tuning.AutoOpeningRate, nil
	case TypeDeckProduction:
		return float64(lvl) * r.tuning.DeckProductionRate, nil
	case TypeImprovedRarity:
		return float64(lvl) * r.tuning.RarityBonusPerLevel, nil
	case TypeLuckyDrop:
		return float64(lvl + 1), nil
	case TypeMultidraw:
		return float64(lvl + 1), nil
	case TypeSceneCustomization:
		return float64(lvl), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownUpgradeType, u.Type)
	}
}

// AutoOpeningRate returns decks auto-opened per second at the given level.
func (r *Resolver) AutoOpeningRate(level int) float64 {
	return float64(clampLevel(level)) * r.tuning.AutoOpeningRate
}

// DeckProductionRate returns decks produced per second at the given level.
func (r *Resolver) DeckProductionRate(level int) float64 {
	return float64(clampLevel(level)) * r.tuning.DeckProductionRate
}

// RarityBonusPercent returns the percent bonus applied to non-common card
// weights at the given improvedRarity level.
func (r *Resolver) RarityBonusPercent(level int) float64 {
	return float64(clampLevel(level)) * r.tuning.RarityBonusPerLevel
}

// BestOfCount returns the luckyDrop best-of-N draw count: level + 1.
// Level 0 means no luck, an ordinary single draw.
func (r *Resolver) BestOfCount(level int) int {
	return clampLevel(level) + 1
}

// BatchSize returns the multidraw batch size: level + 1.
func (r *Resolver) BatchSize(level int) int {
	return clampLevel(level) + 1
}

func clampLevel(l int) int {
	if l < 0 {
		return 0
	}
	return l
}
