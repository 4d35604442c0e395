package draw

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/weo-soft/StackedDeckClicker-sub003/internal/model"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/pool"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/rng"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/upgrade"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// fixedSource replays a scripted sequence of values, wrapping around.
type fixedSource struct {
	vals []float64
	i    int
}

func (s *fixedSource) Float64() float64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

// countingSource counts how many values a draw consumes from the stream.
type countingSource struct {
	src   rng.Source
	calls int
}

func (c *countingSource) Float64() float64 {
	c.calls++
	return c.src.Float64()
}

func testPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.New([]model.Card{
		{Name: "rusty-dagger", Weight: 100, Value: d(1), Tier: model.TierCommon},
		{Name: "oak-shield", Weight: 100, Value: d(2), Tier: model.TierCommon},
		{Name: "silver-blade", Weight: 10, Value: d(25), Tier: model.TierRare},
		{Name: "dragon-crest", Weight: 1, Value: d(500), Tier: model.TierLegendary},
	})
	if err != nil {
		t.Fatalf("failed to build test pool: %v", err)
	}
	return p
}

func levels(m map[string]int) upgrade.Collection {
	return upgrade.CollectionFromLevels(m, upgrade.DefaultCostParams())
}

func newEngine() *Engine {
	return NewEngine(upgrade.NewResolver(upgrade.DefaultTuning()))
}

// --- DrawOne tests ---

func TestDrawOne_NoUpgrades(t *testing.T) {
	e := newEngine()
	p := testPool(t)
	src := &countingSource{src: rng.NewSeeded(1)}

	res, err := e.DrawOne(p, levels(nil), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if src.calls != 1 {
		t.Errorf("plain draw should consume exactly 1 stream value, consumed %d", src.calls)
	}
	if !res.ScoreGained.Equal(res.Card.Value) {
		t.Errorf("score gained %s should equal card value %s", res.ScoreGained, res.Card.Value)
	}
	if res.Timestamp.IsZero() {
		t.Error("expected a non-zero draw timestamp")
	}
}

func TestDrawOne_LuckBestOfN(t *testing.T) {
	e := newEngine()
	p := testPool(t)

	// Cumulative [100,200,210,211]: 0.1→rusty-dagger(1), 0.55→oak-shield(2),
	// 0.97→silver-blade(25). Best-of-3 keeps silver-blade.
	src := &fixedSource{vals: []float64{0.1, 0.55, 0.97}}
	res, err := e.DrawOne(p, levels(map[string]int{upgrade.TypeLuckyDrop: 2}), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Card.Name != "silver-blade" {
		t.Errorf("best-of-3 should keep the highest value card, got %s", res.Card.Name)
	}
	if !res.ScoreGained.Equal(d(25)) {
		t.Errorf("expected score 25, got %s", res.ScoreGained)
	}
}

func TestDrawOne_LuckTieKeepsFirst(t *testing.T) {
	e := newEngine()
	p, err := pool.New([]model.Card{
		{Name: "first-twin", Weight: 50, Value: d(5), Tier: model.TierCommon},
		{Name: "second-twin", Weight: 50, Value: d(5), Tier: model.TierCommon},
	})
	if err != nil {
		t.Fatalf("failed to build pool: %v", err)
	}

	// 0.2 → first-twin, 0.8 → second-twin; equal values, first drawn wins.
	src := &fixedSource{vals: []float64{0.2, 0.8}}
	res, err := e.DrawOne(p, levels(map[string]int{upgrade.TypeLuckyDrop: 1}), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Card.Name != "first-twin" {
		t.Errorf("value tie should keep the first drawn card, got %s", res.Card.Name)
	}
}

func TestDrawOne_LuckConsumesConsecutiveStream(t *testing.T) {
	e := newEngine()
	p := testPool(t)
	src := &countingSource{src: rng.NewSeeded(7)}

	_, err := e.DrawOne(p, levels(map[string]int{upgrade.TypeLuckyDrop: 4}), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.calls != 5 {
		t.Errorf("best-of-5 should consume 5 consecutive stream values, consumed %d", src.calls)
	}
}

func TestDrawOne_LuckMonotonicity(t *testing.T) {
	e := newEngine()
	p := testPool(t)

	for seed := uint64(1); seed <= 50; seed++ {
		plain, err := e.DrawOne(p, levels(nil), rng.NewSeeded(seed))
		if err != nil {
			t.Fatalf("seed %d: unexpected error: %v", seed, err)
		}
		lucky, err := e.DrawOne(p, levels(map[string]int{upgrade.TypeLuckyDrop: 2}), rng.NewSeeded(seed))
		if err != nil {
			t.Fatalf("seed %d: unexpected error: %v", seed, err)
		}

		// The best-of set includes the plain draw's stream position, so the
		// lucky value can never be lower.
		if lucky.ScoreGained.LessThan(plain.ScoreGained) {
			t.Errorf("seed %d: lucky draw value %s below plain draw value %s",
				seed, lucky.ScoreGained, plain.ScoreGained)
		}
	}
}

func TestDrawOne_RarityBonusShiftsDistribution(t *testing.T) {
	e := newEngine()
	p := testPool(t)
	const draws = 10000

	countNonCommon := func(rarityLevel int, seed uint64) int {
		src := rng.NewSeeded(seed)
		ups := levels(map[string]int{upgrade.TypeImprovedRarity: rarityLevel})
		n := 0
		for i := 0; i < draws; i++ {
			res, err := e.DrawOne(p, ups, src)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Card.Tier != model.TierCommon {
				n++
			}
		}
		return n
	}

	base := countNonCommon(0, 42)
	// Level 10 at 10%/level doubles every non-common weight.
	boosted := countNonCommon(10, 42)

	if boosted <= base {
		t.Errorf("rarity bonus should raise non-common draws: base=%d boosted=%d", base, boosted)
	}
}

func TestDrawOne_RarityLeavesSourcePoolUntouched(t *testing.T) {
	e := newEngine()
	p := testPool(t)
	before := p.CumulativeWeights()

	_, err := e.DrawOne(p, levels(map[string]int{upgrade.TypeImprovedRarity: 3}), rng.NewSeeded(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after := p.CumulativeWeights()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("source pool mutated at index %d: %v != %v", i, before[i], after[i])
		}
	}
}

func TestDrawOne_EmptyPoolPropagates(t *testing.T) {
	e := newEngine()

	_, err := e.DrawOne(nil, levels(nil), rng.NewSeeded(1))
	if !errors.Is(err, pool.ErrEmptyPool) {
		t.Errorf("expected ErrEmptyPool for nil pool, got %v", err)
	}

	// Same sentinel when the rarity path hits the nil pool first.
	_, err = e.DrawOne(nil, levels(map[string]int{upgrade.TypeImprovedRarity: 1}), rng.NewSeeded(1))
	if !errors.Is(err, pool.ErrEmptyPool) {
		t.Errorf("expected ErrEmptyPool through the rarity path, got %v", err)
	}
}

// --- DrawMany tests ---

func TestDrawMany_CountAndOrder(t *testing.T) {
	e := newEngine()
	p := testPool(t)

	results, err := e.DrawMany(5, p, levels(nil), rng.NewSeeded(11))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}

	// Same seed, drawn one at a time, must produce the same card order.
	src := rng.NewSeeded(11)
	for i := range results {
		single, err := e.DrawOne(p, levels(nil), src)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if single.Card.Name != results[i].Card.Name {
			t.Errorf("draw %d: batch drew %s, sequential drew %s",
				i, results[i].Card.Name, single.Card.Name)
		}
	}
}

func TestDrawMany_InvalidCount(t *testing.T) {
	e := newEngine()
	p := testPool(t)

	for _, count := range []int{0, -1, -100} {
		_, err := e.DrawMany(count, p, levels(nil), rng.NewSeeded(1))
		if !errors.Is(err, ErrInvalidDrawCount) {
			t.Errorf("count %d: expected ErrInvalidDrawCount, got %v", count, err)
		}
	}
}

func TestDrawMany_Deterministic(t *testing.T) {
	e := newEngine()
	p := testPool(t)
	ups := levels(map[string]int{upgrade.TypeLuckyDrop: 1, upgrade.TypeImprovedRarity: 2})

	a, err := e.DrawMany(100, p, ups, rng.NewSeeded(777))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := e.DrawMany(100, p, ups, rng.NewSeeded(777))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range a {
		if a[i].Card.Name != b[i].Card.Name {
			t.Fatalf("same-seed batches diverged at draw %d: %s != %s",
				i, a[i].Card.Name, b[i].Card.Name)
		}
	}
}
