// Package store defines the persistence interface for the deck engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and database-less runs).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/weo-soft/StackedDeckClicker-sub003/internal/model"
)

// ErrNotFound is returned when a player does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Player operations ---

	// CreatePlayer persists a new player with its upgrade levels.
	CreatePlayer(ctx context.Context, p *model.Player) error

	// GetPlayer retrieves a player by ID.
	GetPlayer(ctx context.Context, id string) (*model.Player, error)

	// UpdatePlayerState updates score, decks, and last-seen after an action.
	UpdatePlayerState(ctx context.Context, id string, score decimal.Decimal, decks int64, lastSeen time.Time) error

	// SetUpgradeLevel records a purchased upgrade level.
	SetUpgradeLevel(ctx context.Context, playerID, upgradeType string, level int) error

	// --- Immutable draw ledger ---

	// InsertDrawRecords appends a batch of draw records.
	InsertDrawRecords(ctx context.Context, records []model.DrawRecord) error

	// GetDrawRecordsByPlayer returns a player's draws, newest first.
	// A limit <= 0 returns all records.
	GetDrawRecordsByPlayer(ctx context.Context, playerID string, limit int) ([]model.DrawRecord, error)

	// --- Collection queries ---

	// GetPlayerCollection aggregates the ledger into per-card counts and
	// totals, ordered by card name.
	GetPlayerCollection(ctx context.Context, playerID string) ([]model.CollectionEntry, error)
}
