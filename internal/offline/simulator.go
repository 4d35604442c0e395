// Package offline retroactively simulates the auto-draws a player missed
// while the game was not running.
//
// The simulation granularity is one synthetic deck open, never one elapsed
// second: the deck count is computed in closed form from the capped elapsed
// time and the autoOpening rate, then replayed through the draw engine in a
// single pass. Work is O(decks opened) regardless of how long the absence
// was, which is what makes multi-day gaps tractable.
package offline

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/weo-soft/StackedDeckClicker-sub003/internal/draw"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/model"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/pool"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/rng"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/upgrade"
)

// DefaultMaxOfflineSeconds caps simulated absence at 7 days.
const DefaultMaxOfflineSeconds = 604800

// Simulator replays the draw engine over a bounded number of synthetic deck
// opens. It holds no state of its own: one call is one complete computation,
// and a caller that discards the result can recompute the same interval
// idempotently.
type Simulator struct {
	engine     *draw.Engine
	resolver   *upgrade.Resolver
	maxSeconds float64
}

// NewSimulator creates a simulator. A non-positive maxOfflineSeconds selects
// DefaultMaxOfflineSeconds.
func NewSimulator(e *draw.Engine, r *upgrade.Resolver, maxOfflineSeconds float64) *Simulator {
	if maxOfflineSeconds <= 0 {
		maxOfflineSeconds = DefaultMaxOfflineSeconds
	}
	return &Simulator{engine: e, resolver: r, maxSeconds: maxOfflineSeconds}
}

// MaxOfflineSeconds returns the configured simulation cap.
func (s *Simulator) MaxOfflineSeconds() float64 {
	return s.maxSeconds
}

// Simulate computes what the player missed between last and current.
//
// Negative elapsed time (clock skew) is clamped to zero silently; it is a
// legitimate real-world condition, not an error. Elapsed time beyond the cap
// is truncated and reported via WasCapped. Only decks that would have
// auto-opened are simulated: without an autoOpening level the result is
// immediately empty. The draw stream is seeded from last — not from
// wall-clock now — so recomputing the same interval reproduces the same
// draws.
func (s *Simulator) Simulate(last, current time.Time, upgrades upgrade.Collection, p *pool.Pool, availableDecks int64) (model.OfflineProgressionResult, error) {
	elapsed := current.Sub(last).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	capped := elapsed
	wasCapped := elapsed > s.maxSeconds
	if wasCapped {
		capped = s.maxSeconds
	}

	result := model.OfflineProgressionResult{
		DrawResults:             []model.DrawResult{},
		TotalScoreGained:        decimal.Zero,
		ElapsedSecondsSimulated: capped,
		WasCapped:               wasCapped,
	}

	rate := s.resolver.AutoOpeningRate(upgrades.Level(upgrade.TypeAutoOpening))
	if rate <= 0 {
		return result, nil
	}

	decksToOpen := int64(math.Floor(capped * rate))
	if decksToOpen > availableDecks {
		decksToOpen = availableDecks
	}
	if decksToOpen <= 0 {
		return result, nil
	}

	src := rng.NewSeeded(rng.SeedFromTime(last))
	draws, err := s.engine.DrawMany(int(decksToOpen), p, upgrades, src)
	if err != nil {
		return model.OfflineProgressionResult{}, err
	}

	total := decimal.Zero
	for _, dr := range draws {
		total = total.Add(dr.ScoreGained)
	}

	result.DrawResults = draws
	result.TotalScoreGained = total
	result.DecksConsumed = decksToOpen
	return result, nil
}
