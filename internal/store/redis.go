package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/weo-soft/StackedDeckClicker-sub003/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreatePlayer(ctx context.Context, p *model.Player) error {
	if err := s.primary.CreatePlayer(ctx, p); err != nil {
		return err
	}
	s.cachePlayer(ctx, p)
	return nil
}

func (s *CachedStore) UpdatePlayerState(ctx context.Context, id string, score decimal.Decimal, decks int64, lastSeen time.Time) error {
	if err := s.primary.UpdatePlayerState(ctx, id, score, decks, lastSeen); err != nil {
		return err
	}
	// Invalidate cache; next read will re-populate.
	s.rdb.Del(ctx, playerKey(id))
	return nil
}

func (s *CachedStore) SetUpgradeLevel(ctx context.Context, playerID, upgradeType string, level int) error {
	if err := s.primary.SetUpgradeLevel(ctx, playerID, upgradeType, level); err != nil {
		return err
	}
	s.rdb.Del(ctx, playerKey(playerID))
	return nil
}

func (s *CachedStore) InsertDrawRecords(ctx context.Context, records []model.DrawRecord) error {
	if err := s.primary.InsertDrawRecords(ctx, records); err != nil {
		return err
	}
	// Invalidate collection aggregates for every player in the batch.
	seen := make(map[string]bool)
	for _, r := range records {
		if !seen[r.PlayerID] {
			seen[r.PlayerID] = true
			s.rdb.Del(ctx, collectionKey(r.PlayerID))
		}
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetPlayer(ctx context.Context, id string) (*model.Player, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, playerKey(id)).Bytes()
	if err == nil {
		var p model.Player
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	// Cache miss: read from primary.
	p, err := s.primary.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cachePlayer(ctx, p)
	return p, nil
}

func (s *CachedStore) GetPlayerCollection(ctx context.Context, playerID string) ([]model.CollectionEntry, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, collectionKey(playerID)).Bytes()
	if err == nil {
		var entries []model.CollectionEntry
		if json.Unmarshal(data, &entries) == nil {
			return entries, nil
		}
	}

	// Cache miss.
	entries, err := s.primary.GetPlayerCollection(ctx, playerID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(entries); err == nil {
		s.rdb.Set(ctx, collectionKey(playerID), data, s.ttl)
	}
	return entries, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetDrawRecordsByPlayer(ctx context.Context, playerID string, limit int) ([]model.DrawRecord, error) {
	return s.primary.GetDrawRecordsByPlayer(ctx, playerID, limit)
}

// --- Cache helpers ---

func (s *CachedStore) cachePlayer(ctx context.Context, p *model.Player) {
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, playerKey(p.ID), data, s.ttl)
	}
}

func playerKey(id string) string     { return fmt.Sprintf("player:%s", id) }
func collectionKey(id string) string { return fmt.Sprintf("collection:%s", id) }
