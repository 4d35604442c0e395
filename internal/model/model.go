// Package model defines the core domain types shared across the deck engine.
// All score and cost values use shopspring/decimal — never float64 for money.
// Card weights and probability math use float64.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// QualityTier is the categorical rarity label of a card. It controls
// rarity-bonus eligibility: improvedRarity boosts every tier except common.
type QualityTier string

const (
	TierCommon    QualityTier = "common"
	TierRare      QualityTier = "rare"
	TierEpic      QualityTier = "epic"
	TierLegendary QualityTier = "legendary"
)

// tierRanks maps each tier to its ordering, common lowest.
var tierRanks = map[QualityTier]int{
	TierCommon:    0,
	TierRare:      1,
	TierEpic:      2,
	TierLegendary: 3,
}

// ParseTier validates a tier string.
func ParseTier(s string) (QualityTier, error) {
	t := QualityTier(s)
	if _, ok := tierRanks[t]; !ok {
		return "", fmt.Errorf("model: unknown quality tier %q", s)
	}
	return t, nil
}

// Rank returns the tier ordering (common=0 .. legendary=3), -1 if unknown.
func (t QualityTier) Rank() int {
	r, ok := tierRanks[t]
	if !ok {
		return -1
	}
	return r
}

// Card is one drawable card. Immutable once loaded into a pool.
type Card struct {
	Name   string          `json:"name"`
	Weight float64         `json:"weight"` // relative draw probability, > 0
	Value  decimal.Decimal `json:"value"`  // score gained when drawn, >= 0
	Tier   QualityTier     `json:"tier"`
}

// DrawResult is an immutable record of one draw.
type DrawResult struct {
	Card        Card            `json:"card"`
	Timestamp   time.Time       `json:"timestamp"`
	ScoreGained decimal.Decimal `json:"score_gained"` // equals Card.Value
}

// OfflineProgressionResult aggregates one offline-progression calculation.
// Created once per calculation, never mutated after construction.
type OfflineProgressionResult struct {
	DrawResults             []DrawResult    `json:"draw_results"`
	TotalScoreGained        decimal.Decimal `json:"total_score_gained"`
	DecksConsumed           int64           `json:"decks_consumed"`
	ElapsedSecondsSimulated float64         `json:"elapsed_seconds_simulated"`
	WasCapped               bool            `json:"was_capped"`
}

// Player holds one player's game state. Score is the spendable currency;
// Decks is the consumable draw resource; Upgrades maps upgrade type name
// to purchased level.
type Player struct {
	ID        string          `json:"id" db:"id"`
	Score     decimal.Decimal `json:"score" db:"score"`
	Decks     int64           `json:"decks" db:"decks"`
	Upgrades  map[string]int  `json:"upgrades"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	LastSeen  time.Time       `json:"last_seen" db:"last_seen"`
}

// DrawRecord is an immutable ledger row for one executed draw.
// Once created, these are never modified or deleted.
// Schema: {player, card, tier, score, source, timestamp}
type DrawRecord struct {
	ID          string          `json:"id" db:"id"`
	PlayerID    string          `json:"player_id" db:"player_id"`
	CardName    string          `json:"card_name" db:"card_name"`
	Tier        QualityTier     `json:"tier" db:"tier"`
	ScoreGained decimal.Decimal `json:"score_gained" db:"score_gained"`
	Source      string          `json:"source" db:"source"` // "manual" or "offline"
	Timestamp   time.Time       `json:"timestamp" db:"timestamp"`
}

// Draw record sources.
const (
	SourceManual  = "manual"
	SourceOffline = "offline"
)

// CollectionEntry is a per-card aggregate computed from the draw ledger.
type CollectionEntry struct {
	CardName   string          `json:"card_name"`
	Tier       QualityTier     `json:"tier"`
	Count      int64           `json:"count"`
	TotalScore decimal.Decimal `json:"total_score"`
}
