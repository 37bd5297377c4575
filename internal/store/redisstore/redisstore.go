package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/park285/swiss-tournament-bot/internal/domain"
	"github.com/park285/swiss-tournament-bot/internal/tournament"
	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 5

var ErrConflict = errors.New("redisstore: transaction kept conflicting")

// Store keeps one tournament in Redis:
//
//	<p>:seq:player, <p>:seq:match   INCR counters
//	<p>:players                     ZSET id -> id (registration order)
//	<p>:player:<id>                 HASH name, wins, matches
//	<p>:matches                     LIST of JSON match records
//	<p>:matches:player:<id>         LIST of JSON match records for one player
//
// WithTx WATCHes the index keys; writes are queued on a MULTI pipeline and
// applied on commit, so reads inside a transaction see the pre-commit state.
type Store struct {
	rdb    *redis.Client
	prefix string
}

func New(rdb *redis.Client, prefix string) *Store {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "swiss"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) keySeqPlayer() string      { return s.prefix + ":seq:player" }
func (s *Store) keySeqMatch() string       { return s.prefix + ":seq:match" }
func (s *Store) keyPlayers() string        { return s.prefix + ":players" }
func (s *Store) keyMatches() string        { return s.prefix + ":matches" }
func (s *Store) keyPlayer(id int64) string { return s.prefix + ":player:" + strconv.FormatInt(id, 10) }

func (s *Store) keyPlayerMatches(id int64) string {
	return s.prefix + ":matches:player:" + strconv.FormatInt(id, 10)
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) WithTx(ctx context.Context, fn func(tx tournament.Tx) error) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
			t := &redistx{s: s, rtx: rtx, pipe: rtx.TxPipeline()}
			if err := fn(t); err != nil {
				t.pipe.Discard()
				return err
			}
			// EXEC validates the WATCH even for read-only work, so a write
			// landing mid-read aborts the snapshot and the loop retries.
			if t.pipe.Len() == 0 {
				t.pipe.Ping(ctx)
			}
			_, err := t.pipe.Exec(ctx)
			return err
		}, s.keyPlayers(), s.keyMatches())
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

type matchRecord struct {
	ID     int64 `json:"id"`
	Winner int64 `json:"winner"`
	Loser  int64 `json:"loser"`
}

type redistx struct {
	s    *Store
	rtx  *redis.Tx
	pipe redis.Pipeliner
}

// CreatePlayer takes the id immediately; a rolled back registration leaves a
// gap in the sequence, like a Postgres serial.
func (t *redistx) CreatePlayer(ctx context.Context, name string) (int64, error) {
	id, err := t.rtx.Incr(ctx, t.s.keySeqPlayer()).Result()
	if err != nil {
		return 0, fmt.Errorf("next player id: %w", err)
	}
	t.pipe.HSet(ctx, t.s.keyPlayer(id), "name", strings.TrimSpace(name), "wins", 0, "matches", 0)
	t.pipe.ZAdd(ctx, t.s.keyPlayers(), redis.Z{Score: float64(id), Member: strconv.FormatInt(id, 10)})
	return id, nil
}

func (t *redistx) GetPlayer(ctx context.Context, id int64) (*domain.Player, error) {
	vals, err := t.rtx.HGetAll(ctx, t.s.keyPlayer(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load player %d: %w", id, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return decodePlayer(id, vals)
}

func decodePlayer(id int64, vals map[string]string) (*domain.Player, error) {
	p := &domain.Player{ID: id, Name: vals["name"]}
	var err error
	if v := vals["wins"]; v != "" {
		if p.Wins, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("player %d wins: %w", id, err)
		}
	}
	if v := vals["matches"]; v != "" {
		if p.Matches, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("player %d matches: %w", id, err)
		}
	}
	return p, nil
}

func (t *redistx) CountPlayers(ctx context.Context) (int, error) {
	n, err := t.rtx.ZCard(ctx, t.s.keyPlayers()).Result()
	if err != nil {
		return 0, fmt.Errorf("count players: %w", err)
	}
	return int(n), nil
}

func (t *redistx) playerIDs(ctx context.Context) ([]int64, error) {
	members, err := t.rtx.ZRange(ctx, t.s.keyPlayers(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list player ids: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad player id %q: %w", m, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (t *redistx) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	ids, err := t.playerIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Player, 0, len(ids))
	for _, id := range ids {
		p, err := t.GetPlayer(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (t *redistx) DeleteAllPlayers(ctx context.Context) error {
	ids, err := t.playerIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		t.pipe.Del(ctx, t.s.keyPlayer(id))
	}
	t.pipe.Del(ctx, t.s.keyPlayers())
	return nil
}

func (t *redistx) RecordMatch(ctx context.Context, winnerID, loserID int64) (int64, error) {
	id, err := t.rtx.Incr(ctx, t.s.keySeqMatch()).Result()
	if err != nil {
		return 0, fmt.Errorf("next match id: %w", err)
	}
	raw, err := json.Marshal(matchRecord{ID: id, Winner: winnerID, Loser: loserID})
	if err != nil {
		return 0, err
	}
	t.pipe.RPush(ctx, t.s.keyMatches(), raw)
	t.pipe.RPush(ctx, t.s.keyPlayerMatches(winnerID), raw)
	t.pipe.RPush(ctx, t.s.keyPlayerMatches(loserID), raw)
	return id, nil
}

func (t *redistx) IncrementCounters(ctx context.Context, winnerID, loserID int64) error {
	t.pipe.HIncrBy(ctx, t.s.keyPlayer(winnerID), "wins", 1)
	t.pipe.HIncrBy(ctx, t.s.keyPlayer(winnerID), "matches", 1)
	t.pipe.HIncrBy(ctx, t.s.keyPlayer(loserID), "matches", 1)
	return nil
}

func (t *redistx) ListMatchesFor(ctx context.Context, playerID int64) ([]domain.Match, error) {
	raws, err := t.rtx.LRange(ctx, t.s.keyPlayerMatches(playerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list matches for %d: %w", playerID, err)
	}
	out := make([]domain.Match, 0, len(raws))
	for _, raw := range raws {
		var m matchRecord
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("decode match: %w", err)
		}
		out = append(out, domain.Match{ID: m.ID, WinnerID: m.Winner, LoserID: m.Loser})
	}
	return out, nil
}

func (t *redistx) DeleteAllMatches(ctx context.Context) error {
	ids, err := t.playerIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		t.pipe.Del(ctx, t.s.keyPlayerMatches(id))
		t.pipe.HSet(ctx, t.s.keyPlayer(id), "wins", 0, "matches", 0)
	}
	t.pipe.Del(ctx, t.s.keyMatches())
	return nil
}
