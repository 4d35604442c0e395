// Package pool implements the immutable weighted-index structure every draw
// queries, plus the selector that picks one card from it.
//
// Construction computes a running prefix sum of card weights. Selection draws
// r = src.Float64() * totalWeight and binary-searches for the first index
// whose cumulative weight exceeds r, giving O(log n) weighted sampling.
//
// A Pool is never mutated after construction. Rarity adjustment and any other
// reweighting build a brand-new Pool, which avoids aliasing between the
// canonical pool and ad-hoc variants used for a single draw.
package pool

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/weo-soft/StackedDeckClicker-sub003/internal/model"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/rng"
)

var (
	// ErrInvalidPool is returned when a pool is constructed from no cards
	// or from a card with a non-positive weight.
	ErrInvalidPool = errors.New("pool: invalid card pool")

	// ErrEmptyPool is returned by Pick when the pool holds no cards. This is
	// a defensive check: New rejects empty pools, so hitting it indicates an
	// invariant violation upstream.
	ErrEmptyPool = errors.New("pool: select from empty pool")
)

// Pool is an immutable weighted index over a card collection.
// Invariant: cumulative[i] = Σ cards[0..i].Weight, strictly increasing, and
// totalWeight == cumulative[len-1] exactly (totalWeight is defined as the
// last prefix sum, so the identity holds bit-for-bit in floating point).
type Pool struct {
	cards      []model.Card
	cumulative []float64
	total      float64
}

// New builds a pool from a card sequence, computing the cumulative prefix
// sums. Fails with ErrInvalidPool if the sequence is empty or any weight is
// non-positive, NaN, or infinite.
func New(cards []model.Card) (*Pool, error) {
	if len(cards) == 0 {
		return nil, fmt.Errorf("%w: no cards", ErrInvalidPool)
	}

	owned := make([]model.Card, len(cards))
	copy(owned, cards)

	cumulative := make([]float64, len(owned))
	var sum float64
	for i, c := range owned {
		if c.Weight <= 0 || math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) {
			return nil, fmt.Errorf("%w: card %q has non-positive weight %v",
				ErrInvalidPool, c.Name, c.Weight)
		}
		sum += c.Weight
		cumulative[i] = sum
	}

	return &Pool{
		cards:      owned,
		cumulative: cumulative,
		total:      cumulative[len(cumulative)-1],
	}, nil
}

// Len returns the number of cards in the pool.
func (p *Pool) Len() int {
	return len(p.cards)
}

// TotalWeight returns the sum of all card weights.
func (p *Pool) TotalWeight() float64 {
	return p.total
}

// CumulativeWeights returns a copy of the prefix-sum sequence.
func (p *Pool) CumulativeWeights() []float64 {
	out := make([]float64, len(p.cumulative))
	copy(out, p.cumulative)
	return out
}

// CardAt returns the card at the given index.
func (p *Pool) CardAt(i int) model.Card {
	return p.cards[i]
}

// Cards returns a copy of the card sequence, in pool order.
func (p *Pool) Cards() []model.Card {
	out := make([]model.Card, len(p.cards))
	copy(out, p.cards)
	return out
}

// Pick draws one card using the injected source: r = src.Float64() * total,
// then the first index i with cumulative[i] > r. The source is advanced by
// exactly one Float64 call, so the same seed, pool, and call sequence always
// yield the same card sequence.
func Pick(p *Pool, src rng.Source) (model.Card, error) {
	if p == nil || len(p.cards) == 0 {
		return model.Card{}, ErrEmptyPool
	}

	r := src.Float64() * p.total

	idx := sort.Search(len(p.cumulative), func(i int) bool {
		return p.cumulative[i] > r
	})
	// Float64 < 1 guarantees r < total mathematically, but the product can
	// round up to total; clamp to the last card in that case.
	if idx == len(p.cumulative) {
		idx = len(p.cumulative) - 1
	}

	return p.cards[idx], nil
}
