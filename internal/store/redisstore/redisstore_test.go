package redisstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/park285/swiss-tournament-bot/internal/domain"
	"github.com/park285/swiss-tournament-bot/internal/tournament"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := New(rdb, "test")
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

// secondClient opens another Store on the same server, standing in for a
// second bot process.
func secondClient(t *testing.T, mr *miniredis.Miniredis) *Store {
	t.Helper()
	s := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedPair(t *testing.T, svc *tournament.Service) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	a, err := svc.RegisterPlayer(ctx, "A")
	if err != nil {
		t.Fatalf("RegisterPlayer: %v", err)
	}
	b, err := svc.RegisterPlayer(ctx, "B")
	if err != nil {
		t.Fatalf("RegisterPlayer: %v", err)
	}
	return a, b
}

func TestServiceOverRedis(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	svc := tournament.NewService(s, tournament.WithStandingsStrategy(tournament.Cached{}))

	var ids []int64
	for _, n := range []string{"A", "B", "C", "D"} {
		id, err := svc.RegisterPlayer(ctx, n)
		if err != nil {
			t.Fatalf("RegisterPlayer: %v", err)
		}
		ids = append(ids, id)
	}
	if err := svc.ReportMatch(ctx, ids[0], ids[1]); err != nil {
		t.Fatalf("ReportMatch: %v", err)
	}
	if err := svc.ReportMatch(ctx, ids[2], ids[3]); err != nil {
		t.Fatalf("ReportMatch: %v", err)
	}

	cached, err := svc.Standings(ctx)
	if err != nil {
		t.Fatalf("Standings: %v", err)
	}
	derived, err := tournament.NewService(s).Standings(ctx)
	if err != nil {
		t.Fatalf("derived Standings: %v", err)
	}
	if len(cached) != 4 || len(derived) != 4 {
		t.Fatalf("expected 4 standings, got %d/%d", len(cached), len(derived))
	}
	for i := range cached {
		if cached[i] != derived[i] {
			t.Fatalf("row %d: cached=%+v derived=%+v", i, cached[i], derived[i])
		}
	}
	if cached[0].PlayerID != ids[0] || cached[0].Wins != 1 || cached[0].Matches != 1 {
		t.Fatalf("unexpected leader: %+v", cached[0])
	}
	if cached[3].PlayerID != ids[3] || cached[3].Wins != 0 || cached[3].Matches != 1 {
		t.Fatalf("unexpected last: %+v", cached[3])
	}

	pairs, err := svc.Pairings(ctx)
	if err != nil {
		t.Fatalf("Pairings: %v", err)
	}
	if len(pairs) != 2 || pairs[0].ID1 != ids[0] || pairs[0].ID2 != ids[2] {
		t.Fatalf("unexpected pairings: %+v", pairs)
	}
}

func TestFailedTxQueuesNothing(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	var a, b int64
	if err := s.WithTx(ctx, func(tx tournament.Tx) error {
		a, _ = tx.CreatePlayer(ctx, "A")
		b, _ = tx.CreatePlayer(ctx, "B")
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx tournament.Tx) error {
		if _, err := tx.RecordMatch(ctx, a, b); err != nil {
			return err
		}
		if err := tx.IncrementCounters(ctx, a, b); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if mr.Exists("test:matches") {
		t.Fatalf("match list written despite rollback")
	}
	if got := mr.HGet("test:player:1", "wins"); got != "0" {
		t.Fatalf("winner counter changed on rollback: %q", got)
	}
}

func TestResetClearsKeys(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	svc := tournament.NewService(s)

	a, _ := svc.RegisterPlayer(ctx, "A")
	b, _ := svc.RegisterPlayer(ctx, "B")
	if err := svc.ReportMatch(ctx, a, b); err != nil {
		t.Fatalf("ReportMatch: %v", err)
	}
	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	for _, k := range []string{"test:players", "test:matches", "test:player:1", "test:matches:player:1"} {
		if mr.Exists(k) {
			t.Fatalf("key %s survived reset", k)
		}
	}
	if n, err := svc.CountPlayers(ctx); err != nil || n != 0 {
		t.Fatalf("CountPlayers = %d, %v", n, err)
	}
}

func TestDeleteMatchesZeroesCounters(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	svc := tournament.NewService(s, tournament.WithStandingsStrategy(tournament.Cached{}))

	a, _ := svc.RegisterPlayer(ctx, "A")
	b, _ := svc.RegisterPlayer(ctx, "B")
	_ = svc.ReportMatch(ctx, a, b)
	if err := svc.DeleteMatches(ctx); err != nil {
		t.Fatalf("DeleteMatches: %v", err)
	}
	st, err := svc.Standings(ctx)
	if err != nil {
		t.Fatalf("Standings: %v", err)
	}
	for _, row := range st {
		if row.Wins != 0 || row.Matches != 0 {
			t.Fatalf("counters survived: %+v", row)
		}
	}
}

func TestReportUnknownPlayer(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	svc := tournament.NewService(s)
	a, _ := svc.RegisterPlayer(ctx, "A")
	if err := svc.ReportMatch(ctx, a, 77); !errors.Is(err, tournament.ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestReadOnlyTxRetriesOnConcurrentWrite(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	other := tournament.NewService(secondClient(t, mr))
	a, b := seedPair(t, tournament.NewService(s))

	calls := 0
	var winnerMatches, loserMatches int
	err := s.WithTx(ctx, func(tx tournament.Tx) error {
		calls++
		pa, err := tx.GetPlayer(ctx, a)
		if err != nil {
			return err
		}
		if calls == 1 {
			if err := other.ReportMatch(ctx, a, b); err != nil {
				t.Fatalf("ReportMatch from second client: %v", err)
			}
		}
		pb, err := tx.GetPlayer(ctx, b)
		if err != nil {
			return err
		}
		winnerMatches, loserMatches = pa.Matches, pb.Matches
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, fn ran %d times", calls)
	}
	if winnerMatches != 1 || loserMatches != 1 {
		t.Fatalf("torn snapshot: winner matches=%d loser matches=%d", winnerMatches, loserMatches)
	}
}

func TestConflictExhaustsRetries(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	other := tournament.NewService(secondClient(t, mr))
	a, b := seedPair(t, tournament.NewService(s))

	calls := 0
	err := s.WithTx(ctx, func(tx tournament.Tx) error {
		calls++
		if _, err := tx.CountPlayers(ctx); err != nil {
			return err
		}
		return other.ReportMatch(ctx, a, b)
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if calls != maxTxRetries {
		t.Fatalf("fn ran %d times, want %d", calls, maxTxRetries)
	}
	if got := tournament.KindOf(err); got != tournament.KindStore {
		t.Fatalf("KindOf = %v, want store", got)
	}
}

func sumRecords(t *testing.T, s *Store) (cached, derived []domain.Standing, wins, matches int) {
	t.Helper()
	ctx := context.Background()
	cached, err := tournament.NewService(s, tournament.WithStandingsStrategy(tournament.Cached{})).Standings(ctx)
	if err != nil {
		t.Fatalf("cached standings: %v", err)
	}
	derived, err = tournament.NewService(s).Standings(ctx)
	if err != nil {
		t.Fatalf("derived standings: %v", err)
	}
	for _, row := range cached {
		wins += row.Wins
		matches += row.Matches
	}
	return cached, derived, wins, matches
}

func TestConcurrentReportsLoseNothing(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	svc := tournament.NewService(s)
	a, b := seedPair(t, svc)

	const workers, perWorker = 6, 10
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				winner, loser := a, b
				if (w+i)%2 == 1 {
					winner, loser = b, a
				}
				if err := svc.ReportMatch(ctx, winner, loser); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("ReportMatch: %v", err)
	}

	cached, derived, wins, matches := sumRecords(t, s)
	if diff := cmp.Diff(derived, cached); diff != "" {
		t.Fatalf("strategies disagree (-derived +cached):\n%s", diff)
	}
	if wins != workers*perWorker || matches != 2*workers*perWorker {
		t.Fatalf("wins=%d matches=%d, want %d and %d", wins, matches, workers*perWorker, 2*workers*perWorker)
	}
}

func TestConcurrentReportsFromTwoClients(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	services := []*tournament.Service{tournament.NewService(s), tournament.NewService(secondClient(t, mr))}
	a, b := seedPair(t, services[0])

	const perClient = 20
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, svc := range services {
		wg.Add(1)
		go func(svc *tournament.Service) {
			defer wg.Done()
			for i := 0; i < perClient; i++ {
				err := svc.ReportMatch(ctx, a, b)
				switch {
				case err == nil:
					mu.Lock()
					ok++
					mu.Unlock()
				case errors.Is(err, ErrConflict):
					// the other client kept winning; nothing was written
				default:
					t.Errorf("ReportMatch: %v", err)
				}
			}
		}(svc)
	}
	wg.Wait()
	if ok == 0 {
		t.Fatalf("no report committed")
	}

	cached, derived, wins, matches := sumRecords(t, s)
	if diff := cmp.Diff(derived, cached); diff != "" {
		t.Fatalf("strategies disagree (-derived +cached):\n%s", diff)
	}
	if wins != ok || matches != 2*ok {
		t.Fatalf("wins=%d matches=%d after %d committed reports", wins, matches, ok)
	}
}
