package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/park285/swiss-tournament-bot/internal/domain"
	"github.com/park285/swiss-tournament-bot/internal/tournament"
)

var ErrClosed = errors.New("memstore: closed")

// state is the full tournament; transactions work on a clone and swap it in
// on commit.
type state struct {
	nextPlayerID int64
	nextMatchID  int64

	players map[int64]*domain.Player
	matches []domain.Match
}

func (s *state) clone() *state {
	c := &state{
		nextPlayerID: s.nextPlayerID,
		nextMatchID:  s.nextMatchID,
		players:      make(map[int64]*domain.Player, len(s.players)),
		matches:      append([]domain.Match(nil), s.matches...),
	}
	for id, p := range s.players {
		cp := *p
		c.players[id] = &cp
	}
	return c
}

// Store is an in-process tournament.Store. Transactions are fully serialized.
type Store struct {
	mu     sync.Mutex
	cur    *state
	closed bool
}

func New() *Store {
	return &Store{cur: &state{players: make(map[int64]*domain.Player)}}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx tournament.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	work := s.cur.clone()
	if err := fn(&memtx{st: work}); err != nil {
		return err
	}
	// a panic in fn skips this line and leaves cur untouched
	s.cur = work
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type memtx struct {
	st *state
}

func (t *memtx) CreatePlayer(ctx context.Context, name string) (int64, error) {
	t.st.nextPlayerID++
	id := t.st.nextPlayerID
	t.st.players[id] = &domain.Player{ID: id, Name: strings.TrimSpace(name)}
	return id, nil
}

func (t *memtx) GetPlayer(ctx context.Context, id int64) (*domain.Player, error) {
	p, ok := t.st.players[id]
	if !ok || p == nil {
		return nil, nil
	}
	copy := *p
	return &copy, nil
}

func (t *memtx) CountPlayers(ctx context.Context) (int, error) {
	return len(t.st.players), nil
}

func (t *memtx) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	out := make([]domain.Player, 0, len(t.st.players))
	for _, p := range t.st.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memtx) DeleteAllPlayers(ctx context.Context) error {
	if len(t.st.matches) > 0 {
		return errors.New("memstore: players still referenced by matches")
	}
	t.st.players = make(map[int64]*domain.Player)
	return nil
}

func (t *memtx) RecordMatch(ctx context.Context, winnerID, loserID int64) (int64, error) {
	if _, ok := t.st.players[winnerID]; !ok {
		return 0, tournament.ErrPlayerNotFound
	}
	if _, ok := t.st.players[loserID]; !ok {
		return 0, tournament.ErrPlayerNotFound
	}
	t.st.nextMatchID++
	m := domain.Match{ID: t.st.nextMatchID, WinnerID: winnerID, LoserID: loserID}
	t.st.matches = append(t.st.matches, m)
	return m.ID, nil
}

func (t *memtx) IncrementCounters(ctx context.Context, winnerID, loserID int64) error {
	w, ok := t.st.players[winnerID]
	if !ok {
		return tournament.ErrPlayerNotFound
	}
	l, ok := t.st.players[loserID]
	if !ok {
		return tournament.ErrPlayerNotFound
	}
	w.Wins++
	w.Matches++
	l.Matches++
	return nil
}

func (t *memtx) ListMatchesFor(ctx context.Context, playerID int64) ([]domain.Match, error) {
	var out []domain.Match
	for _, m := range t.st.matches {
		if m.WinnerID == playerID || m.LoserID == playerID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *memtx) DeleteAllMatches(ctx context.Context) error {
	t.st.matches = nil
	for _, p := range t.st.players {
		p.Wins, p.Matches = 0, 0
	}
	return nil
}
