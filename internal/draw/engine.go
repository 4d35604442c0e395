// Package draw composes the weighted pool, the selector, and the upgrade
// resolver into single and batched card draws.
//
// Two upgrades shape a draw. improvedRarity multiplies every non-common
// card's weight into a brand-new pool used for that call only. luckyDrop
// performs best-of-N selection over consecutive picks from one injected
// source stream, keeping the highest-value card and, on ties, the first
// drawn — which keeps the result deterministic for a given stream.
package draw

import (
	"errors"
	"fmt"
	"time"

	"github.com/weo-soft/StackedDeckClicker-sub003/internal/model"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/pool"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/rng"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/upgrade"
)

// ErrInvalidDrawCount is returned by DrawMany for a non-positive count.
// This is a programming error on the caller's side, never user input.
var ErrInvalidDrawCount = errors.New("draw: draw count must be positive")

// Engine produces draws from a pool under a player's upgrade collection.
// It is stateless; pool, upgrades, and the random source are passed per call.
type Engine struct {
	resolver *upgrade.Resolver
}

// NewEngine creates a draw engine using the given resolver for upgrade
// effect lookups.
func NewEngine(r *upgrade.Resolver) *Engine {
	return &Engine{resolver: r}
}

// DrawOne performs one draw: rarity reweighting when improvedRarity is
// leveled, best-of-N selection when luckyDrop is leveled, otherwise a single
// pick. The chosen card is wrapped with the current timestamp and
// ScoreGained = card.Value. Pool and selector errors propagate unchanged.
func (e *Engine) DrawOne(p *pool.Pool, upgrades upgrade.Collection, src rng.Source) (model.DrawResult, error) {
	active := p
	if lvl := upgrades.Level(upgrade.TypeImprovedRarity); lvl > 0 {
		adjusted, err := e.rarityAdjusted(p, lvl)
		if err != nil {
			return model.DrawResult{}, err
		}
		active = adjusted
	}

	n := e.resolver.BestOfCount(upgrades.Level(upgrade.TypeLuckyDrop))

	var best model.Card
	for i := 0; i < n; i++ {
		card, err := pool.Pick(active, src)
		if err != nil {
			return model.DrawResult{}, err
		}
		// Strict comparison: equal-value candidates never replace the
		// incumbent, so the first drawn wins ties.
		if i == 0 || card.Value.GreaterThan(best.Value) {
			best = card
		}
	}

	return model.DrawResult{
		Card:        best,
		Timestamp:   time.Now().UTC(),
		ScoreGained: best.Value,
	}, nil
}

// DrawMany calls DrawOne exactly count times in order, reusing the same
// source stream, and returns results in draw order.
func (e *Engine) DrawMany(count int, p *pool.Pool, upgrades upgrade.Collection, src rng.Source) ([]model.DrawResult, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDrawCount, count)
	}

	results := make([]model.DrawResult, 0, count)
	for i := 0; i < count; i++ {
		res, err := e.DrawOne(p, upgrades, src)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// rarityAdjusted builds a new pool with every non-common card's weight
// multiplied by (1 + bonusPercent/100). The result is used for one call and
// discarded; the source pool is never touched.
func (e *Engine) rarityAdjusted(p *pool.Pool, level int) (*pool.Pool, error) {
	if p == nil || p.Len() == 0 {
		return nil, pool.ErrEmptyPool
	}

	factor := 1 + e.resolver.RarityBonusPercent(level)/100
	cards := p.Cards()
	for i := range cards {
		if cards[i].Tier != model.TierCommon {
			cards[i].Weight *= factor
		}
	}
	return pool.New(cards)
}
