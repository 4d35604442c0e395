package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/weo-soft/StackedDeckClicker-sub003/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// for running without a database. Not suitable for production (no
// persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	players map[string]*model.Player
	ledger  []model.DrawRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players: make(map[string]*model.Player),
	}
}

func (s *MemoryStore) CreatePlayer(_ context.Context, p *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.players[p.ID]; exists {
		return fmt.Errorf("player %s already exists", p.ID)
	}
	s.players[p.ID] = clonePlayer(p)
	return nil
}

func (s *MemoryStore) GetPlayer(_ context.Context, id string) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return nil, fmt.Errorf("%w: player %s", ErrNotFound, id)
	}
	return clonePlayer(p), nil
}

func (s *MemoryStore) UpdatePlayerState(_ context.Context, id string, score decimal.Decimal, decks int64, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return fmt.Errorf("%w: player %s", ErrNotFound, id)
	}
	p.Score = score
	p.Decks = decks
	p.LastSeen = lastSeen
	return nil
}

func (s *MemoryStore) SetUpgradeLevel(_ context.Context, playerID, upgradeType string, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	if p.Upgrades == nil {
		p.Upgrades = make(map[string]int)
	}
	p.Upgrades[upgradeType] = level
	return nil
}

func (s *MemoryStore) InsertDrawRecords(_ context.Context, records []model.DrawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = append(s.ledger, records...)
	return nil
}

func (s *MemoryStore) GetDrawRecordsByPlayer(_ context.Context, playerID string, limit int) ([]model.DrawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Walk the ledger backwards so the newest records come first.
	var result []model.DrawRecord
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if s.ledger[i].PlayerID != playerID {
			continue
		}
		result = append(result, s.ledger[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// GetPlayerCollection aggregates draw records into per-card counts and
// score totals.
func (s *MemoryStore) GetPlayerCollection(_ context.Context, playerID string) ([]model.CollectionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := make(map[string]*model.CollectionEntry)
	for _, r := range s.ledger {
		if r.PlayerID != playerID {
			continue
		}
		e, ok := agg[r.CardName]
		if !ok {
			e = &model.CollectionEntry{CardName: r.CardName, Tier: r.Tier}
			agg[r.CardName] = e
		}
		e.Count++
		e.TotalScore = e.TotalScore.Add(r.ScoreGained)
	}

	entries := make([]model.CollectionEntry, 0, len(agg))
	for _, e := range agg {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CardName < entries[j].CardName
	})
	return entries, nil
}

// clonePlayer copies a player including its upgrades map so callers never
// share state with the store.
func clonePlayer(p *model.Player) *model.Player {
	c := *p
	c.Upgrades = make(map[string]int, len(p.Upgrades))
	for typ, lvl := range p.Upgrades {
		c.Upgrades[typ] = lvl
	}
	return &c
}
