package tournament

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/park285/swiss-tournament-bot/internal/domain"
	"github.com/park285/swiss-tournament-bot/internal/obslog"
	"go.uber.org/zap"
)

// Recorder receives per-operation telemetry. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	ObserveOperation(op string, elapsed time.Duration, err error)
	PlayerRegistered()
	MatchReported()
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, time.Duration, error) {}
func (nopRecorder) PlayerRegistered()                              {}
func (nopRecorder) MatchReported()                                 {}

// Service is the single entry point for tournament operations. Each call runs
// in exactly one store transaction; mutating calls are additionally serialized
// in-process.
type Service struct {
	store     Store
	standings StandingsStrategy
	pairing   PairingStrategy
	logger    *zap.Logger
	recorder  Recorder

	writeMu sync.Mutex
}

type Option func(*Service)

func WithStandingsStrategy(s StandingsStrategy) Option {
	return func(svc *Service) {
		if s != nil {
			svc.standings = s
		}
	}
}

func WithPairingStrategy(p PairingStrategy) Option {
	return func(svc *Service) {
		if p != nil {
			svc.pairing = p
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(svc *Service) {
		if r != nil {
			svc.recorder = r
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	svc := &Service{
		store:     store,
		standings: Derived{},
		pairing:   Adjacent{},
		logger:    obslog.L(),
		recorder:  nopRecorder{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) StandingsStrategy() string { return s.standings.Name() }
func (s *Service) PairingStrategy() string   { return s.pairing.Name() }

// RegisterPlayer adds a player and returns the store-assigned id.
func (s *Service) RegisterPlayer(ctx context.Context, name string) (id int64, err error) {
	defer s.observe("register_player", time.Now(), &err)

	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrInvalidName
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = s.store.WithTx(ctx, func(tx Tx) error {
		var cerr error
		id, cerr = tx.CreatePlayer(ctx, name)
		if cerr != nil {
			return fmt.Errorf("create player: %w", cerr)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.recorder.PlayerRegistered()
	s.logger.Info("player_register", zap.Int64("player_id", id), zap.String("name", name))
	return id, nil
}

// ReportMatch records the outcome and bumps the cached counters atomically.
func (s *Service) ReportMatch(ctx context.Context, winnerID, loserID int64) (err error) {
	defer s.observe("report_match", time.Now(), &err)

	if winnerID == loserID {
		return ErrSelfMatch
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var matchID int64
	err = s.store.WithTx(ctx, func(tx Tx) error {
		for _, id := range []int64{winnerID, loserID} {
			p, gerr := tx.GetPlayer(ctx, id)
			if gerr != nil {
				return fmt.Errorf("get player %d: %w", id, gerr)
			}
			if p == nil {
				return fmt.Errorf("player %d: %w", id, ErrPlayerNotFound)
			}
		}
		var rerr error
		matchID, rerr = tx.RecordMatch(ctx, winnerID, loserID)
		if rerr != nil {
			return fmt.Errorf("record match: %w", rerr)
		}
		if ierr := tx.IncrementCounters(ctx, winnerID, loserID); ierr != nil {
			return fmt.Errorf("increment counters: %w", ierr)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recorder.MatchReported()
	s.logger.Info("match_report",
		zap.Int64("match_id", matchID),
		zap.Int64("winner_id", winnerID),
		zap.Int64("loser_id", loserID),
	)
	return nil
}

// Standings returns players ranked by wins; ties go to the lower id.
func (s *Service) Standings(ctx context.Context) (out []domain.Standing, err error) {
	defer s.observe("standings", time.Now(), &err)

	err = s.store.WithTx(ctx, func(tx Tx) error {
		var serr error
		out, serr = s.standings.Standings(ctx, tx)
		return serr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Pairings computes the next round. Fewer than two or an odd number of
// registered players is a precondition error.
func (s *Service) Pairings(ctx context.Context) (out []domain.Pairing, err error) {
	defer s.observe("pairings", time.Now(), &err)

	var standings []domain.Standing
	err = s.store.WithTx(ctx, func(tx Tx) error {
		var serr error
		standings, serr = s.standings.Standings(ctx, tx)
		return serr
	})
	if err != nil {
		return nil, err
	}
	if err = checkPairable(len(standings)); err != nil {
		s.logger.Warn("pairings_rejected", zap.Int("players", len(standings)), zap.Error(err))
		return nil, err
	}
	out = s.pairing.Pair(standings)
	s.logger.Debug("pairings_compute",
		zap.String("strategy", s.pairing.Name()),
		zap.Int("players", len(standings)),
		zap.Int("pairs", len(out)),
	)
	return out, nil
}

func (s *Service) CountPlayers(ctx context.Context) (n int, err error) {
	defer s.observe("count_players", time.Now(), &err)

	err = s.store.WithTx(ctx, func(tx Tx) error {
		var cerr error
		n, cerr = tx.CountPlayers(ctx)
		return cerr
	})
	return n, err
}

// DeleteMatches removes every match and zeroes the counters.
func (s *Service) DeleteMatches(ctx context.Context) (err error) {
	defer s.observe("delete_matches", time.Now(), &err)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = s.store.WithTx(ctx, func(tx Tx) error { return tx.DeleteAllMatches(ctx) })
	if err == nil {
		s.logger.Info("matches_delete")
	}
	return err
}

// DeletePlayers removes every player together with their matches.
func (s *Service) DeletePlayers(ctx context.Context) (err error) {
	defer s.observe("delete_players", time.Now(), &err)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = s.store.WithTx(ctx, func(tx Tx) error { return clearAll(ctx, tx) })
	if err == nil {
		s.logger.Info("players_delete")
	}
	return err
}

// Reset clears the whole tournament in one transaction.
func (s *Service) Reset(ctx context.Context) (err error) {
	defer s.observe("reset", time.Now(), &err)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = s.store.WithTx(ctx, func(tx Tx) error { return clearAll(ctx, tx) })
	if err == nil {
		s.logger.Info("tournament_reset")
	}
	return err
}

// clearAll deletes matches before players since matches reference them.
func clearAll(ctx context.Context, tx Tx) error {
	if err := tx.DeleteAllMatches(ctx); err != nil {
		return fmt.Errorf("delete matches: %w", err)
	}
	if err := tx.DeleteAllPlayers(ctx); err != nil {
		return fmt.Errorf("delete players: %w", err)
	}
	return nil
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	s.recorder.ObserveOperation(op, time.Since(start), err)
	if err != nil && KindOf(err) == KindStore {
		s.logger.Error("store_failure", zap.String("op", op), zap.Error(err))
	}
}
