package pool

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/weo-soft/StackedDeckClicker-sub003/internal/model"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/rng"
)

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

func mkCards(weights ...float64) []model.Card {
	cards := make([]model.Card, len(weights))
	for i, w := range weights {
		cards[i] = model.Card{
			Name:   fmt.Sprintf("card-%d", i),
			Weight: w,
			Value:  decimal.NewFromInt(int64(i)),
			Tier:   model.TierCommon,
		}
	}
	return cards
}

// --- Constructor tests ---

func TestNew_CumulativeInvariant(t *testing.T) {
	p, err := New(mkCards(100, 100, 10, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []float64{100, 200, 210, 211}
	got := p.CumulativeWeights()
	if len(got) != len(want) {
		t.Fatalf("expected %d cumulative weights, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cumulative[%d]: expected %v, got %v", i, want[i], got[i])
		}
		if i > 0 && got[i] < got[i-1] {
			t.Errorf("cumulative weights decreased at %d: %v < %v", i, got[i], got[i-1])
		}
	}
	if p.TotalWeight() != got[len(got)-1] {
		t.Errorf("totalWeight %v != last cumulative %v", p.TotalWeight(), got[len(got)-1])
	}
}

func TestNew_EmptyFails(t *testing.T) {
	_, err := New(nil)
	if !errors.Is(err, ErrInvalidPool) {
		t.Errorf("expected ErrInvalidPool for empty card set, got %v", err)
	}
}

func TestNew_BadWeights(t *testing.T) {
	tests := []struct {
		name   string
		weight float64
	}{
		{"zero", 0},
		{"negative", -5},
		{"NaN", math.NaN()},
		{"+Inf", math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards := mkCards(100)
			cards = append(cards, model.Card{Name: "bad", Weight: tt.weight, Tier: model.TierCommon})
			_, err := New(cards)
			if !errors.Is(err, ErrInvalidPool) {
				t.Errorf("expected ErrInvalidPool for weight %v, got %v", tt.weight, err)
			}
		})
	}
}

func TestNew_CopiesInput(t *testing.T) {
	cards := mkCards(10, 20)
	p, err := New(cards)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cards[0].Name = "mutated"
	if p.CardAt(0).Name != "card-0" {
		t.Error("pool aliases the caller's card slice")
	}
}

func TestCumulativeWeights_ReturnsCopy(t *testing.T) {
	p, _ := New(mkCards(10, 20))
	cw := p.CumulativeWeights()
	cw[0] = -1
	if p.CumulativeWeights()[0] != 10 {
		t.Error("CumulativeWeights exposed internal state")
	}
}

// --- Selector tests ---

func TestPick_SingleCardPool(t *testing.T) {
	p, _ := New(mkCards(5))
	for _, v := range []float64{0, 0.25, 0.5, 0.999999} {
		card, err := Pick(p, &fixedSource{vals: []float64{v}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if card.Name != "card-0" {
			t.Errorf("single-card pool returned %q for r-value %v", card.Name, v)
		}
	}
}

func TestPick_IndexBoundaries(t *testing.T) {
	// Weights [100,100,10,1] → cumulative [100,200,210,211].
	p, _ := New(mkCards(100, 100, 10, 1))

	tests := []struct {
		val  float64
		want string
	}{
		{0.0, "card-0"},
		{0.25, "card-0"},
		{0.5, "card-1"},
		{0.9, "card-1"},
		{0.96, "card-2"},
		{0.998, "card-3"},
	}
	for _, tt := range tests {
		card, err := Pick(p, &fixedSource{vals: []float64{tt.val}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if card.Name != tt.want {
			t.Errorf("value %v: expected %s, got %s", tt.val, tt.want, card.Name)
		}
	}
}

func TestPick_EmptyPool(t *testing.T) {
	src := rng.NewSeeded(1)

	if _, err := Pick(nil, src); !errors.Is(err, ErrEmptyPool) {
		t.Errorf("expected ErrEmptyPool for nil pool, got %v", err)
	}
	if _, err := Pick(&Pool{}, src); !errors.Is(err, ErrEmptyPool) {
		t.Errorf("expected ErrEmptyPool for zero-value pool, got %v", err)
	}
}

func TestPick_Deterministic(t *testing.T) {
	p, _ := New(mkCards(100, 100, 10, 1))

	a := rng.NewSeeded(99)
	b := rng.NewSeeded(99)
	for i := 0; i < 200; i++ {
		ca, errA := Pick(p, a)
		cb, errB := Pick(p, b)
		if errA != nil || errB != nil {
			t.Fatalf("unexpected error at %d: %v %v", i, errA, errB)
		}
		if ca.Name != cb.Name {
			t.Fatalf("same-seed streams diverged at draw %d: %s != %s", i, ca.Name, cb.Name)
		}
	}
}

func TestPick_DistributionFidelity(t *testing.T) {
	p, _ := New(mkCards(100, 100, 10, 1))
	src := rng.NewSeeded(12345)

	counts := make(map[string]int)
	const draws = 10000
	for i := 0; i < draws; i++ {
		card, err := Pick(p, src)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		counts[card.Name]++
	}

	heavy := counts["card-0"] + counts["card-1"]
	mid := counts["card-2"]
	rare := counts["card-3"]

	if heavy <= 10*mid {
		t.Errorf("weight-100 cards drawn %d times, expected > 10x the weight-10 card (%d)", heavy, mid)
	}
	if mid <= 3*rare {
		t.Errorf("weight-10 card drawn %d times, expected a wide margin over the weight-1 card (%d)", mid, rare)
	}
	if heavy+mid+rare != draws {
		t.Errorf("draw counts do not cover all draws: %d + %d + %d != %d", heavy, mid, rare, draws)
	}
}
