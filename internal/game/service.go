// Package game provides the HTTP handlers and business logic for player
// lifecycle, card draws, upgrade purchases, and offline progression claims.
//
// All score values use shopspring/decimal — never float64 for money.
package game

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/weo-soft/StackedDeckClicker-sub003/internal/catalog"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/config"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/draw"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/limit"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/metrics"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/model"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/offline"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/rng"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/store"
	"github.com/weo-soft/StackedDeckClicker-sub003/internal/upgrade"
)

// Draw history paging bounds for GET /players/{playerID}/draws.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Service handles player operations. Uses a mutex for serialized draw and
// purchase execution (single-instance). For horizontal scaling, replace with
// distributed locking or database-level optimistic concurrency.
type Service struct {
	store     store.Store
	catalog   *catalog.Holder
	resolver  *upgrade.Resolver
	engine    *draw.Engine
	simulator *offline.Simulator
	limiter   *limit.DrawLimiter
	mu        sync.Mutex
	wsHub     *WSHub // optional WebSocket hub for real-time broadcasts

	costs         map[string]upgrade.CostParams
	startingScore decimal.Decimal
	startingDecks int64
	src           rng.Source
}

// NewService creates a new game service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(cfg *config.Config, st store.Store, cat *catalog.Holder, limiter *limit.DrawLimiter, hub *WSHub) *Service {
	resolver := upgrade.NewResolver(cfg.Game.Tuning())
	engine := draw.NewEngine(resolver)
	return &Service{
		store:         st,
		catalog:       cat,
		resolver:      resolver,
		engine:        engine,
		simulator:     offline.NewSimulator(engine, resolver, cfg.Game.MaxOfflineSeconds),
		limiter:       limiter,
		wsHub:         hub,
		costs:         cfg.Game.CostParams(),
		startingScore: cfg.Game.StartingScore,
		startingDecks: cfg.Game.StartingDecks,
		src:           rng.NewCrypto(),
	}
}

// --- Request/Response types ---

// DrawRequest is the JSON body for POST /players/{playerID}/draws.
// The body is optional; an empty body draws from the default pool.
type DrawRequest struct {
	Pool string `json:"pool,omitempty"` // pool name; "" → catalog default
}

// DrawResponse is the JSON body returned from a draw.
type DrawResponse struct {
	PlayerID    string             `json:"player_id"`
	Pool        string             `json:"pool"`
	Results     []model.DrawResult `json:"results"`
	ScoreGained decimal.Decimal    `json:"score_gained"`
	Score       decimal.Decimal    `json:"score"`
	Decks       int64              `json:"decks"`
}

// PurchaseUpgradeRequest is the JSON body for POST /players/{playerID}/upgrades.
type PurchaseUpgradeRequest struct {
	Type string `json:"type"`
}

// PurchaseUpgradeResponse is the JSON body returned from a purchase.
type PurchaseUpgradeResponse struct {
	PlayerID string          `json:"player_id"`
	Type     string          `json:"type"`
	Level    int             `json:"level"`
	Cost     decimal.Decimal `json:"cost"`
	NextCost decimal.Decimal `json:"next_cost"`
	Score    decimal.Decimal `json:"score"`
}

// UpgradeStatus is one entry in the GET /players/{playerID}/upgrades listing.
type UpgradeStatus struct {
	Type     string          `json:"type"`
	Level    int             `json:"level"`
	NextCost decimal.Decimal `json:"next_cost"`
	Effect   float64         `json:"effect"`
}

// OfflineClaimResponse is the JSON body returned from POST
// /players/{playerID}/offline-claim.
type OfflineClaimResponse struct {
	PlayerID      string                         `json:"player_id"`
	Result        model.OfflineProgressionResult `json:"result"`
	DecksProduced int64                          `json:"decks_produced"`
	Score         decimal.Decimal                `json:"score"`
	Decks         int64                          `json:"decks"`
}

// CatalogResponse is the JSON body returned from GET /catalog.
type CatalogResponse struct {
	DefaultPool string                  `json:"default_pool"`
	Pools       map[string][]model.Card `json:"pools"`
}

// --- HTTP Handlers ---

// CreatePlayer handles POST /api/v1/players
func (s *Service) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	levels := make(map[string]int, len(upgrade.Types()))
	for _, typ := range upgrade.Types() {
		levels[typ] = 0
	}

	now := time.Now().UTC()
	player := &model.Player{
		ID:        uuid.New().String(),
		Score:     s.startingScore,
		Decks:     s.startingDecks,
		Upgrades:  levels,
		CreatedAt: now,
		LastSeen:  now,
	}

	if err := s.store.CreatePlayer(r.Context(), player); err != nil {
		writeError(w, "failed to create player", http.StatusInternalServerError)
		return
	}

	slog.Info("player created",
		"id", player.ID,
		"score", player.Score.String(),
		"decks", player.Decks,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(player)
}

// GetPlayer handles GET /api/v1/players/{playerID}
func (s *Service) GetPlayer(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	player, err := s.store.GetPlayer(r.Context(), playerID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "player not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load player", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(player)
}

// GetCollection handles GET /api/v1/players/{playerID}/collection
func (s *Service) GetCollection(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	ctx := r.Context()

	if _, err := s.store.GetPlayer(ctx, playerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "player not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to load player", http.StatusInternalServerError)
		return
	}

	entries, err := s.store.GetPlayerCollection(ctx, playerID)
	if err != nil {
		writeError(w, "failed to load collection", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.CollectionEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// GetDrawHistory handles GET /api/v1/players/{playerID}/draws?limit=N
func (s *Service) GetDrawHistory(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	ctx := r.Context()

	limitN := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limitN = n
	}

	if _, err := s.store.GetPlayer(ctx, playerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "player not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to load player", http.StatusInternalServerError)
		return
	}

	records, err := s.store.GetDrawRecordsByPlayer(ctx, playerID, limitN)
	if err != nil {
		writeError(w, "failed to load draw history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.DrawRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// ListUpgrades handles GET /api/v1/players/{playerID}/upgrades
func (s *Service) ListUpgrades(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	player, err := s.store.GetPlayer(r.Context(), playerID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "player not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load player", http.StatusInternalServerError)
		return
	}

	collection := upgrade.CollectionFromLevels(player.Upgrades, s.costs)
	statuses := make([]UpgradeStatus, 0, len(collection))
	for _, typ := range upgrade.Types() {
		u := collection[typ]
		effect, err := s.resolver.Effect(u)
		if err != nil {
			// Cannot happen for a known type; corrupt upgrade state.
			slog.Error("upgrade effect resolution failed", "player", playerID, "type", typ, "err", err)
			writeError(w, "invalid upgrade state", http.StatusInternalServerError)
			return
		}
		statuses = append(statuses, UpgradeStatus{
			Type:     typ,
			Level:    u.Level,
			NextCost: s.resolver.Cost(u),
			Effect:   effect,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statuses)
}

// GetCatalog handles GET /api/v1/catalog
func (s *Service) GetCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.catalog.Current()

	resp := CatalogResponse{
		DefaultPool: cat.DefaultName(),
		Pools:       make(map[string][]model.Card),
	}
	for _, name := range cat.Names() {
		resp.Pools[name] = cat.Cards(name)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ExecuteDraw handles POST /api/v1/players/{playerID}/draws
// Consumes decks, executes against the weighted pool, returns drawn cards
// and updated player state.
func (s *Service) ExecuteDraw(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	if err := s.limiter.Allow(playerID); err != nil {
		metrics.RateLimitRejections.Inc()
		writeError(w, "draw rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	var req DrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	start := time.Now()

	// Serialize draw execution.
	s.mu.Lock()
	defer s.mu.Unlock()

	player, err := s.store.GetPlayer(ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "player not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load player", http.StatusInternalServerError)
		return
	}

	if player.Decks <= 0 {
		writeError(w, "no decks available", http.StatusConflict)
		return
	}

	cat := s.catalog.Current()
	poolName := req.Pool
	if poolName == "" {
		poolName = cat.DefaultName()
	}
	p, ok := cat.Pool(poolName)
	if !ok {
		writeError(w, "unknown pool: "+poolName, http.StatusBadRequest)
		return
	}

	collection := upgrade.CollectionFromLevels(player.Upgrades, s.costs)

	// multidraw opens one deck per card, capped by available decks.
	count := s.resolver.BatchSize(collection.Level(upgrade.TypeMultidraw))
	if int64(count) > player.Decks {
		count = int(player.Decks)
	}

	results, err := s.engine.DrawMany(count, p, collection, s.src)
	if err != nil {
		writeError(w, "draw failed", http.StatusInternalServerError)
		return
	}

	total := decimal.Zero
	for _, res := range results {
		total = total.Add(res.ScoreGained)
	}
	newScore := player.Score.Add(total)
	newDecks := player.Decks - int64(count)
	now := time.Now().UTC()

	if err := s.store.UpdatePlayerState(ctx, playerID, newScore, newDecks, now); err != nil {
		writeError(w, "failed to update player state", http.StatusInternalServerError)
		return
	}

	// Immutable ledger entries, one per card.
	records := make([]model.DrawRecord, 0, len(results))
	for _, res := range results {
		records = append(records, model.DrawRecord{
			ID:          uuid.New().String(),
			PlayerID:    playerID,
			CardName:    res.Card.Name,
			Tier:        res.Card.Tier,
			ScoreGained: res.ScoreGained,
			Source:      model.SourceManual,
			Timestamp:   res.Timestamp,
		})
	}
	if err := s.store.InsertDrawRecords(ctx, records); err != nil {
		writeError(w, "failed to record draws", http.StatusInternalServerError)
		return
	}

	for _, rec := range records {
		metrics.DrawsTotal.WithLabelValues(string(rec.Tier), model.SourceManual).Inc()
	}
	metrics.ScoreGained.Add(total.InexactFloat64())
	metrics.DrawLatency.WithLabelValues(model.SourceManual).Observe(time.Since(start).Seconds())

	slog.Info("draws executed",
		"player", playerID,
		"pool", poolName,
		"count", len(results),
		"score_gained", total.String(),
		"decks_left", newDecks,
	)

	// Broadcast draw results via WebSocket.
	if s.wsHub != nil {
		names := make([]string, 0, len(results))
		for _, res := range results {
			names = append(names, res.Card.Name)
		}
		s.wsHub.Broadcast(WSMessage{
			Type:        "draw",
			PlayerID:    playerID,
			Cards:       names,
			BestTier:    string(bestTier(results)),
			ScoreGained: total.String(),
			Source:      model.SourceManual,
		})
	}

	resp := DrawResponse{
		PlayerID:    playerID,
		Pool:        poolName,
		Results:     results,
		ScoreGained: total,
		Score:       newScore,
		Decks:       newDecks,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// PurchaseUpgrade handles POST /api/v1/players/{playerID}/upgrades
// Deducts the level cost from the player's score and records the new level.
func (s *Service) PurchaseUpgrade(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	var req PurchaseUpgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !upgrade.KnownType(req.Type) {
		writeError(w, "unknown upgrade type: "+req.Type, http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// Serialize purchase execution.
	s.mu.Lock()
	defer s.mu.Unlock()

	player, err := s.store.GetPlayer(ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "player not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load player", http.StatusInternalServerError)
		return
	}

	collection := upgrade.CollectionFromLevels(player.Upgrades, s.costs)
	u := collection[req.Type]
	cost := s.resolver.Cost(u)

	if !s.resolver.CanAfford(u, player.Score) {
		writeError(w, "insufficient score", http.StatusConflict)
		return
	}

	newLevel := u.Level + 1
	newScore := player.Score.Sub(cost)

	if err := s.store.SetUpgradeLevel(ctx, playerID, req.Type, newLevel); err != nil {
		writeError(w, "failed to record upgrade", http.StatusInternalServerError)
		return
	}
	if err := s.store.UpdatePlayerState(ctx, playerID, newScore, player.Decks, time.Now().UTC()); err != nil {
		writeError(w, "failed to update player state", http.StatusInternalServerError)
		return
	}

	metrics.UpgradePurchases.WithLabelValues(req.Type).Inc()

	slog.Info("upgrade purchased",
		"player", playerID,
		"type", req.Type,
		"level", newLevel,
		"cost", cost.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:        "upgrade_purchased",
			PlayerID:    playerID,
			UpgradeType: req.Type,
			Level:       newLevel,
		})
	}

	u.Level = newLevel
	resp := PurchaseUpgradeResponse{
		PlayerID: playerID,
		Type:     req.Type,
		Level:    newLevel,
		Cost:     cost,
		NextCost: s.resolver.Cost(u),
		Score:    newScore,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ClaimOffline handles POST /api/v1/players/{playerID}/offline-claim
// Simulates draws missed since the player's last seen timestamp, banks
// produced decks, and advances last seen so a repeat claim yields nothing.
func (s *Service) ClaimOffline(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	ctx := r.Context()

	// Serialize with draws and purchases; a claim mutates the same state.
	s.mu.Lock()
	defer s.mu.Unlock()

	player, err := s.store.GetPlayer(ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "player not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load player", http.StatusInternalServerError)
		return
	}

	collection := upgrade.CollectionFromLevels(player.Upgrades, s.costs)
	now := time.Now().UTC()

	// deckProduction banks decks over the same clamped interval the
	// simulator replays.
	elapsed := now.Sub(player.LastSeen).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	if max := s.simulator.MaxOfflineSeconds(); elapsed > max {
		elapsed = max
	}
	prodRate := s.resolver.DeckProductionRate(collection.Level(upgrade.TypeDeckProduction))
	produced := int64(math.Floor(elapsed * prodRate))
	available := player.Decks + produced

	result, err := s.simulator.Simulate(player.LastSeen, now, collection, s.catalog.Current().Default(), available)
	if err != nil {
		writeError(w, "offline simulation failed", http.StatusInternalServerError)
		return
	}

	newScore := player.Score.Add(result.TotalScoreGained)
	newDecks := available - result.DecksConsumed

	if err := s.store.UpdatePlayerState(ctx, playerID, newScore, newDecks, now); err != nil {
		writeError(w, "failed to update player state", http.StatusInternalServerError)
		return
	}

	if len(result.DrawResults) > 0 {
		records := make([]model.DrawRecord, 0, len(result.DrawResults))
		for _, res := range result.DrawResults {
			records = append(records, model.DrawRecord{
				ID:          uuid.New().String(),
				PlayerID:    playerID,
				CardName:    res.Card.Name,
				Tier:        res.Card.Tier,
				ScoreGained: res.ScoreGained,
				Source:      model.SourceOffline,
				Timestamp:   res.Timestamp,
			})
		}
		if err := s.store.InsertDrawRecords(ctx, records); err != nil {
			writeError(w, "failed to record draws", http.StatusInternalServerError)
			return
		}
		for _, rec := range records {
			metrics.DrawsTotal.WithLabelValues(string(rec.Tier), model.SourceOffline).Inc()
		}
		metrics.ScoreGained.Add(result.TotalScoreGained.InexactFloat64())
	}

	metrics.OfflineClaims.Inc()
	metrics.OfflineDecksOpened.Add(float64(result.DecksConsumed))

	slog.Info("offline progression claimed",
		"player", playerID,
		"elapsed_s", result.ElapsedSecondsSimulated,
		"decks_opened", result.DecksConsumed,
		"decks_produced", produced,
		"score_gained", result.TotalScoreGained.String(),
		"capped", result.WasCapped,
	)

	if s.wsHub != nil {
		msg := WSMessage{
			Type:        "offline_claimed",
			PlayerID:    playerID,
			ScoreGained: result.TotalScoreGained.String(),
			DecksOpened: result.DecksConsumed,
		}
		if len(result.DrawResults) > 0 {
			msg.BestTier = string(bestTier(result.DrawResults))
		}
		s.wsHub.Broadcast(msg)
	}

	resp := OfflineClaimResponse{
		PlayerID:      playerID,
		Result:        result,
		DecksProduced: produced,
		Score:         newScore,
		Decks:         newDecks,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// bestTier returns the highest quality tier among drawn cards.
func bestTier(results []model.DrawResult) model.QualityTier {
	best := results[0].Card.Tier
	for _, res := range results[1:] {
		if res.Card.Tier.Rank() > best.Rank() {
			best = res.Card.Tier
		}
	}
	return best
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
