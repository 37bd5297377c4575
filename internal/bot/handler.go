package bot

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/swiss-tournament-bot/internal/adapter/swisspresenter"
	"github.com/park285/swiss-tournament-bot/internal/domain"
	"github.com/park285/swiss-tournament-bot/internal/irisfast"
	"github.com/park285/swiss-tournament-bot/internal/tournament"
	"go.uber.org/zap"
)

// Service is the part of tournament.Service the chat commands use.
type Service interface {
	RegisterPlayer(ctx context.Context, name string) (int64, error)
	ReportMatch(ctx context.Context, winnerID, loserID int64) error
	Standings(ctx context.Context) ([]domain.Standing, error)
	Pairings(ctx context.Context) ([]domain.Pairing, error)
	CountPlayers(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
}

var _ Service = (*tournament.Service)(nil)

type Config struct {
	Prefix       string
	AllowedRooms []string
	// AdminUsers may run reset. Empty means anyone.
	AdminUsers []string
	// Timeout bounds one command, including replies. Zero means 15s.
	Timeout time.Duration
}

type Handler struct {
	svc       Service
	format    *swisspresenter.Formatter
	present   *swisspresenter.Presenter
	cfg       Config
	logger    *zap.Logger
	requestID func() string

	inflight sync.WaitGroup
}

func NewHandler(svc Service, format *swisspresenter.Formatter, present *swisspresenter.Presenter, cfg Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Handler{
		svc:       svc,
		format:    format,
		present:   present,
		cfg:       cfg,
		logger:    logger,
		requestID: uuid.NewString,
	}
}

// Accepts applies the room filter and prefix check.
func (h *Handler) Accepts(msg *irisfast.Message) bool {
	if msg == nil || msg.Msg == "" {
		return false
	}
	if len(h.cfg.AllowedRooms) > 0 && !slices.Contains(h.cfg.AllowedRooms, msg.Room) {
		return false
	}
	_, ok := ParseCommand(h.cfg.Prefix, msg.Msg)
	return ok
}

// OnMessage is the WebSocket callback; each command runs on its own goroutine.
func (h *Handler) OnMessage(msg *irisfast.Message) {
	if !h.Accepts(msg) {
		return
	}
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Timeout)
		defer cancel()
		if err := h.Handle(ctx, msg); err != nil {
			h.logger.Warn("reply_failed", zap.String("room", msg.Room), zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight commands finish or ctx is done.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle runs one command and replies to the message's room. The returned
// error is a delivery failure; service errors are answered in the room.
func (h *Handler) Handle(ctx context.Context, msg *irisfast.Message) error {
	if !h.Accepts(msg) {
		return nil
	}
	cmd, _ := ParseCommand(h.cfg.Prefix, msg.Msg)
	reqID := h.requestID()
	log := h.logger.With(
		zap.String("request_id", reqID),
		zap.String("room", msg.Room),
		zap.String("user", msg.UserID()),
		zap.String("cmd", cmd.Name),
	)
	start := time.Now()
	defer func() { log.Debug("command_done", zap.Duration("elapsed", time.Since(start))) }()

	room := msg.Room
	reply := func(text string) error { return h.present.Text(ctx, room, text) }
	fail := func(err error) error {
		if tournament.KindOf(err) == tournament.KindStore {
			log.Error("command_failed", zap.Error(err))
		} else {
			log.Info("command_rejected", zap.Error(err))
		}
		players := 0
		if errors.Is(err, tournament.ErrOddPlayerCount) {
			players, _ = h.svc.CountPlayers(ctx)
		}
		return reply(h.format.Error(err, reqID, players))
	}

	switch cmd.Name {
	case CmdHelp:
		return reply(h.format.Help())

	case CmdRegister:
		if cmd.Rest == "" {
			return reply(h.format.Usage(CmdRegister))
		}
		id, err := h.svc.RegisterPlayer(ctx, cmd.Rest)
		if err != nil {
			return fail(err)
		}
		return reply(h.format.Registered(id, cmd.Rest))

	case CmdReport:
		if len(cmd.Args) != 2 {
			return reply(h.format.Usage(CmdReport))
		}
		ids := make([]int64, 2)
		for i, a := range cmd.Args {
			n, err := strconv.ParseInt(trimHash(a), 10, 64)
			if err != nil {
				return reply(h.format.BadID(a))
			}
			ids[i] = n
		}
		if err := h.svc.ReportMatch(ctx, ids[0], ids[1]); err != nil {
			return fail(err)
		}
		return reply(h.format.Reported(ids[0], ids[1]))

	case CmdStandings:
		rows, err := h.svc.Standings(ctx)
		if err != nil {
			return fail(err)
		}
		return h.present.Standings(ctx, room, h.format.Standings(rows), h.format.ImageTitle(), rows)

	case CmdPairings:
		pairs, err := h.svc.Pairings(ctx)
		if err != nil {
			return fail(err)
		}
		return reply(h.format.Pairings(pairs))

	case CmdCount:
		n, err := h.svc.CountPlayers(ctx)
		if err != nil {
			return fail(err)
		}
		return reply(h.format.Count(n))

	case CmdReset:
		if !h.isAdmin(msg) {
			log.Warn("reset_denied")
			return reply(h.format.ResetDenied())
		}
		if err := h.svc.Reset(ctx); err != nil {
			return fail(err)
		}
		log.Info("reset_by_command")
		return reply(h.format.ResetDone())

	default:
		return reply(h.format.UnknownCommand())
	}
}

func (h *Handler) isAdmin(msg *irisfast.Message) bool {
	if len(h.cfg.AdminUsers) == 0 {
		return true
	}
	return slices.Contains(h.cfg.AdminUsers, msg.UserID())
}

// "#12" and "12" both name player 12.
func trimHash(s string) string {
	if len(s) > 1 && s[0] == '#' {
		return s[1:]
	}
	return s
}
