package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/swiss-tournament-bot/internal/adapter/swisspresenter"
	"github.com/park285/swiss-tournament-bot/internal/bot"
	"github.com/park285/swiss-tournament-bot/internal/broadcast"
	appcfg "github.com/park285/swiss-tournament-bot/internal/config"
	"github.com/park285/swiss-tournament-bot/internal/irisfast"
	"github.com/park285/swiss-tournament-bot/internal/metrics"
	"github.com/park285/swiss-tournament-bot/internal/msgcat"
	"github.com/park285/swiss-tournament-bot/internal/obslog"
	"github.com/park285/swiss-tournament-bot/internal/render"
	"github.com/park285/swiss-tournament-bot/internal/storebuilder"
	"github.com/park285/swiss-tournament-bot/internal/tournament"
	"go.uber.org/zap"
)

func main() {
	if err := appcfg.LoadDotEnv(); err != nil {
		log.Fatalf("dotenv: %v", err)
	}
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	deps, err := storebuilder.New(ctx, &cfg.Store, logger, tournament.WithRecorder(m))
	if err != nil {
		logger.Fatal("store_init_failed", zap.Error(err))
	}
	defer func() { _ = deps.Close() }()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("messages_init_failed", zap.Error(err))
	}

	headers := irisfast.AuthHeaders(cfg.XUserID, cfg.XUserEmail, cfg.XSessionID)
	client := irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(headers))
	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, logger)
	ws.SetHeaderProvider(headers)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("ws_state", zap.Stringer("state", state))
	})
	egress := irisfast.NewEgress(cfg.EgressMode, client, ws, logger)

	formatter := swisspresenter.NewFormatter(cat, cfg.BotPrefix)
	presenter := swisspresenter.NewPresenter(egress, render.NewStandingsRenderer(0))
	handler := bot.NewHandler(deps.Service, formatter, presenter, bot.Config{
		Prefix:       cfg.BotPrefix,
		AllowedRooms: cfg.AllowedRooms,
		AdminUsers:   cfg.AdminUsers,
	}, logger)
	ws.OnMessage(handler.OnMessage)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics_server_failed", zap.Error(err))
			}
		}()
	}

	var sched *broadcast.Scheduler
	if cfg.BroadcastCron != "" {
		poster := broadcast.NewPoster(deps.Service, formatter, presenter, cfg.BroadcastRooms, logger)
		sched, err = broadcast.Start(cfg.BroadcastCron, poster)
		if err != nil {
			logger.Fatal("broadcast_init_failed", zap.Error(err))
		}
		logger.Info("broadcast_scheduled", zap.String("cron", cfg.BroadcastCron), zap.Strings("rooms", cfg.BroadcastRooms))
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = ws.Connect(cctx)
	cancel()
	if err != nil {
		logger.Fatal("ws_connect_failed", zap.Error(err))
	}
	logger.Info("bot_started", zap.String("prefix", cfg.BotPrefix), zap.String("egress", cfg.EgressMode))

	<-ctx.Done()
	logger.Info("shutting_down")

	sctx, scancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer scancel()
	if err := ws.Close(sctx); err != nil {
		logger.Warn("ws_close", zap.Error(err))
	}
	if err := handler.Wait(sctx); err != nil {
		logger.Warn("inflight_commands_abandoned", zap.Error(err))
	}
	if err := sched.Shutdown(); err != nil {
		logger.Warn("broadcast_shutdown", zap.Error(err))
	}
}
