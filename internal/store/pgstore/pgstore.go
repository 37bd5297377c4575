package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/park285/swiss-tournament-bot/internal/domain"
	"github.com/park285/swiss-tournament-bot/internal/tournament"
)

const schema = `
CREATE TABLE IF NOT EXISTS players (
	id      SERIAL PRIMARY KEY,
	name    TEXT NOT NULL,
	wins    INTEGER NOT NULL DEFAULT 0 CHECK (wins >= 0),
	matches INTEGER NOT NULL DEFAULT 0 CHECK (matches >= 0)
);

CREATE TABLE IF NOT EXISTS matches (
	id     SERIAL PRIMARY KEY,
	winner INTEGER NOT NULL REFERENCES players (id),
	loser  INTEGER NOT NULL REFERENCES players (id),
	CHECK (winner <> loser)
);

CREATE INDEX IF NOT EXISTS matches_winner_idx ON matches (winner);
CREATE INDEX IF NOT EXISTS matches_loser_idx ON matches (loser);
`

// foreign_key_violation
const pqForeignKeyViolation = "23503"

type Store struct {
	db *sql.DB
}

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing pool.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate creates the players and matches tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx tournament.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(&pgtx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgtx struct {
	tx *sql.Tx
}

func (t *pgtx) CreatePlayer(ctx context.Context, name string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO players (name) VALUES ($1) RETURNING id`,
		strings.TrimSpace(name),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert player: %w", err)
	}
	return id, nil
}

// GetPlayer locks the row so concurrent match reports on the same player
// serialize on it.
func (t *pgtx) GetPlayer(ctx context.Context, id int64) (*domain.Player, error) {
	var p domain.Player
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, name, wins, matches FROM players WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&p.ID, &p.Name, &p.Wins, &p.Matches)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select player: %w", err)
	}
	return &p, nil
}

func (t *pgtx) CountPlayers(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT count(*) FROM players`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count players: %w", err)
	}
	return n, nil
}

func (t *pgtx) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, name, wins, matches FROM players ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select players: %w", err)
	}
	defer rows.Close()

	var out []domain.Player
	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.Wins, &p.Matches); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgtx) DeleteAllPlayers(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM players`); err != nil {
		return fmt.Errorf("delete players: %w", err)
	}
	return nil
}

func (t *pgtx) RecordMatch(ctx context.Context, winnerID, loserID int64) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO matches (winner, loser) VALUES ($1, $2) RETURNING id`,
		winnerID, loserID,
	).Scan(&id)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqForeignKeyViolation {
		return 0, tournament.ErrPlayerNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("insert match: %w", err)
	}
	return id, nil
}

func (t *pgtx) IncrementCounters(ctx context.Context, winnerID, loserID int64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE players
		SET wins = wins + CASE WHEN id = $1 THEN 1 ELSE 0 END,
		    matches = matches + 1
		WHERE id IN ($1, $2)`,
		winnerID, loserID,
	)
	if err != nil {
		return fmt.Errorf("update counters: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 2 {
		return tournament.ErrPlayerNotFound
	}
	return nil
}

func (t *pgtx) ListMatchesFor(ctx context.Context, playerID int64) ([]domain.Match, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, winner, loser FROM matches WHERE winner = $1 OR loser = $1 ORDER BY id`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select matches: %w", err)
	}
	defer rows.Close()

	var out []domain.Match
	for rows.Next() {
		var m domain.Match
		if err := rows.Scan(&m.ID, &m.WinnerID, &m.LoserID); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *pgtx) DeleteAllMatches(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM matches`); err != nil {
		return fmt.Errorf("delete matches: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `UPDATE players SET wins = 0, matches = 0`); err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	return nil
}
