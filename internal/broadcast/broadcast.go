package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/park285/swiss-tournament-bot/internal/adapter/swisspresenter"
	"github.com/park285/swiss-tournament-bot/internal/domain"
	"go.uber.org/zap"
)

type StandingsSource interface {
	Standings(ctx context.Context) ([]domain.Standing, error)
}

// Poster sends the current standings to a fixed set of rooms.
type Poster struct {
	src     StandingsSource
	format  *swisspresenter.Formatter
	present *swisspresenter.Presenter
	rooms   []string
	logger  *zap.Logger
}

func NewPoster(src StandingsSource, format *swisspresenter.Formatter, present *swisspresenter.Presenter, rooms []string, logger *zap.Logger) *Poster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poster{src: src, format: format, present: present, rooms: rooms, logger: logger}
}

// Post reads standings once and delivers them to every room. An empty
// tournament posts nothing.
func (p *Poster) Post(ctx context.Context) error {
	rows, err := p.src.Standings(ctx)
	if err != nil {
		return fmt.Errorf("load standings: %w", err)
	}
	if len(rows) == 0 {
		p.logger.Debug("broadcast_skip_empty")
		return nil
	}
	text := p.format.Broadcast(rows)
	var errs []error
	for _, room := range p.rooms {
		if err := p.present.Standings(ctx, room, text, p.format.ImageTitle(), rows); err != nil {
			errs = append(errs, fmt.Errorf("room %s: %w", room, err))
		}
	}
	return errors.Join(errs...)
}

// Scheduler runs a Poster on a gocron schedule.
type Scheduler struct {
	s gocron.Scheduler
}

// Start schedules p on a five-field cron expression.
func Start(cronExpr string, p *Poster) (*Scheduler, error) {
	cronExpr = strings.TrimSpace(cronExpr)
	if cronExpr == "" {
		return nil, errors.New("empty cron expression")
	}
	return start(gocron.CronJob(cronExpr, false), p)
}

func start(def gocron.JobDefinition, p *Poster) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	_, err = s.NewJob(def,
		gocron.NewTask(func(ctx context.Context) {
			tctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := p.Post(tctx); err != nil {
				p.logger.Warn("broadcast_failed", zap.Error(err))
				return
			}
			p.logger.Info("broadcast_posted", zap.Int("rooms", len(p.rooms)))
		}),
		gocron.WithName("standings-broadcast"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("schedule broadcast: %w", err)
	}
	s.Start()
	return &Scheduler{s: s}, nil
}

func (s *Scheduler) Shutdown() error {
	if s == nil || s.s == nil {
		return nil
	}
	return s.s.Shutdown()
}
