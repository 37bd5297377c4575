package pgstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/park285/swiss-tournament-bot/internal/tournament"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// Run with SWISS_PG_INTEGRATION=1 and a reachable Docker daemon.
func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() || os.Getenv("SWISS_PG_INTEGRATION") == "" {
		t.Skip("set SWISS_PG_INTEGRATION=1 to run postgres integration tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("swiss"),
		postgres.WithUsername("swiss"),
		postgres.WithPassword("swiss"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestServiceAgainstPostgres(t *testing.T) {
	s := newIntegrationStore(t)
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
	if err := svc.ReportMatch(ctx, ids[0], 424242); !errors.Is(err, tournament.ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}

	cached, err := svc.Standings(ctx)
	if err != nil {
		t.Fatalf("Standings: %v", err)
	}
	derived, err := tournament.NewService(s).Standings(ctx)
	if err != nil {
		t.Fatalf("derived Standings: %v", err)
	}
	for i := range cached {
		if cached[i] != derived[i] {
			t.Fatalf("row %d differs: cached=%+v derived=%+v", i, cached[i], derived[i])
		}
	}
	if cached[0].PlayerID != ids[0] || cached[1].PlayerID != ids[2] {
		t.Fatalf("unexpected order: %+v", cached)
	}

	pairs, err := svc.Pairings(ctx)
	if err != nil {
		t.Fatalf("Pairings: %v", err)
	}
	if len(pairs) != 2 || pairs[0].ID1 != ids[0] || pairs[0].ID2 != ids[2] {
		t.Fatalf("unexpected pairings: %+v", pairs)
	}

	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n, err := svc.CountPlayers(ctx); err != nil || n != 0 {
		t.Fatalf("CountPlayers after reset = %d, %v", n, err)
	}
}

func TestRollbackLeavesNoMatch(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	var a, b int64
	if err := s.WithTx(ctx, func(tx tournament.Tx) error {
		var err error
		if a, err = tx.CreatePlayer(ctx, "A"); err != nil {
			return err
		}
		b, err = tx.CreatePlayer(ctx, "B")
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx tournament.Tx) error {
		if _, err := tx.RecordMatch(ctx, a, b); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	_ = s.WithTx(ctx, func(tx tournament.Tx) error {
		ms, err := tx.ListMatchesFor(ctx, a)
		if err != nil || len(ms) != 0 {
			t.Fatalf("rolled back match visible: %v %+v", err, ms)
		}
		return nil
	})
}
