package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/weo-soft/StackedDeckClicker-sub003/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All score values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS players (
	id         TEXT PRIMARY KEY,
	score      NUMERIC NOT NULL,
	decks      BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	last_seen  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS player_upgrades (
	player_id    TEXT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
	upgrade_type TEXT NOT NULL,
	level        INT NOT NULL DEFAULT 0,
	PRIMARY KEY (player_id, upgrade_type)
);

CREATE TABLE IF NOT EXISTS draw_records (
	id           TEXT PRIMARY KEY,
	player_id    TEXT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
	card_name    TEXT NOT NULL,
	tier         TEXT NOT NULL,
	score_gained NUMERIC NOT NULL,
	source       TEXT NOT NULL,
	drawn_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_draw_records_player_drawn_at
	ON draw_records (player_id, drawn_at DESC);
`

// InitSchema bootstraps the tables. Idempotent; safe to run at every start.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePlayer(ctx context.Context, p *model.Player) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("create player: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO players (id, score, decks, created_at, last_seen)
		 VALUES ($1, $2::NUMERIC, $3, $4, $5)`,
		p.ID, p.Score.String(), p.Decks, p.CreatedAt, p.LastSeen)
	if err != nil {
		return fmt.Errorf("create player %s: %w", p.ID, err)
	}

	for typ, lvl := range p.Upgrades {
		if _, err := tx.Exec(ctx,
			`INSERT INTO player_upgrades (player_id, upgrade_type, level)
			 VALUES ($1, $2, $3)`,
			p.ID, typ, lvl); err != nil {
			return fmt.Errorf("create player %s upgrade %s: %w", p.ID, typ, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetPlayer(ctx context.Context, id string) (*model.Player, error) {
	var p model.Player
	var score string

	err := s.pool.QueryRow(ctx,
		`SELECT id, score::TEXT, decks, created_at, last_seen
		 FROM players WHERE id = $1`, id).
		Scan(&p.ID, &score, &p.Decks, &p.CreatedAt, &p.LastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: player %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get player %s: %w", id, err)
	}
	p.Score, _ = decimal.NewFromString(score)

	rows, err := s.pool.Query(ctx,
		`SELECT upgrade_type, level FROM player_upgrades WHERE player_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get player %s upgrades: %w", id, err)
	}
	defer rows.Close()

	p.Upgrades = make(map[string]int)
	for rows.Next() {
		var typ string
		var lvl int
		if err := rows.Scan(&typ, &lvl); err != nil {
			return nil, err
		}
		p.Upgrades[typ] = lvl
	}
	return &p, rows.Err()
}

func (s *PostgresStore) UpdatePlayerState(ctx context.Context, id string, score decimal.Decimal, decks int64, lastSeen time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE players
		 SET score = $2::NUMERIC, decks = $3, last_seen = $4
		 WHERE id = $1`,
		id, score.String(), decks, lastSeen)
	if err != nil {
		return fmt.Errorf("update player %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: player %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) SetUpgradeLevel(ctx context.Context, playerID, upgradeType string, level int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO player_upgrades (player_id, upgrade_type, level)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (player_id, upgrade_type) DO UPDATE SET level = EXCLUDED.level`,
		playerID, upgradeType, level)
	if err != nil {
		return fmt.Errorf("set upgrade %s for player %s: %w", upgradeType, playerID, err)
	}
	return nil
}

// InsertDrawRecords uses the COPY protocol so large offline batches land in
// one round trip.
func (s *PostgresStore) InsertDrawRecords(ctx context.Context, records []model.DrawRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		var score pgtype.Numeric
		if err := score.Scan(r.ScoreGained.String()); err != nil {
			return fmt.Errorf("insert draw records: bad score %s: %w", r.ScoreGained, err)
		}
		rows[i] = []any{r.ID, r.PlayerID, r.CardName, string(r.Tier), score, r.Source, r.Timestamp}
	}

	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"draw_records"},
		[]string{"id", "player_id", "card_name", "tier", "score_gained", "source", "drawn_at"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("insert draw records: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDrawRecordsByPlayer(ctx context.Context, playerID string, limit int) ([]model.DrawRecord, error) {
	q := `SELECT id, player_id, card_name, tier, score_gained::TEXT, source, drawn_at
	      FROM draw_records WHERE player_id = $1 ORDER BY drawn_at DESC`

	var rows pgx.Rows
	var err error
	if limit > 0 {
		rows, err = s.pool.Query(ctx, q+` LIMIT $2`, playerID, limit)
	} else {
		rows, err = s.pool.Query(ctx, q, playerID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.DrawRecord
	for rows.Next() {
		var r model.DrawRecord
		var tier, score string
		if err := rows.Scan(&r.ID, &r.PlayerID, &r.CardName, &tier, &score, &r.Source, &r.Timestamp); err != nil {
			return nil, err
		}
		r.Tier = model.QualityTier(tier)
		r.ScoreGained, _ = decimal.NewFromString(score)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) GetPlayerCollection(ctx context.Context, playerID string) ([]model.CollectionEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT card_name, tier, COUNT(*) AS count,
		        COALESCE(SUM(score_gained), 0)::TEXT AS total_score
		 FROM draw_records
		 WHERE player_id = $1
		 GROUP BY card_name, tier
		 ORDER BY card_name`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.CollectionEntry
	for rows.Next() {
		var e model.CollectionEntry
		var tier, total string
		if err := rows.Scan(&e.CardName, &tier, &e.Count, &total); err != nil {
			return nil, err
		}
		e.Tier = model.QualityTier(tier)
		e.TotalScore, _ = decimal.NewFromString(total)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
