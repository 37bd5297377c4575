package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/park285/swiss-tournament-bot/internal/config"
	"github.com/park285/swiss-tournament-bot/internal/irisfast"
	"github.com/park285/swiss-tournament-bot/internal/obslog"
	"github.com/park285/swiss-tournament-bot/internal/render"
	"github.com/park285/swiss-tournament-bot/internal/storebuilder"
	"github.com/park285/swiss-tournament-bot/internal/tournament"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "swissctl",
		Usage:     "operate a Swiss tournament store from the shell",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded before reading the environment"},
			&cli.StringFlag{Name: "backend", Usage: "override STORE_BACKEND (memory|postgres|redis)"},
			&cli.StringFlag{Name: "standings", Usage: "override STANDINGS_STRATEGY (derived|cached)"},
			&cli.StringFlag{Name: "pairing", Usage: "override PAIRING_STRATEGY (adjacent|greedy)"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log at debug level to stderr"},
		},
		Before: func(c *cli.Context) error {
			if err := config.LoadDotEnv(c.String("env-file")); err != nil {
				return err
			}
			level := "warn"
			if c.Bool("verbose") {
				level = "debug"
			}
			l, err := obslog.New(obslog.Options{Level: level, Format: "console", Console: true, Stdout: os.Stderr})
			if err != nil {
				return err
			}
			obslog.Set(l)
			return nil
		},
		Commands: []*cli.Command{
			migrateCommand(),
			registerCommand(),
			reportCommand(),
			standingsCommand(),
			pairingsCommand(),
			countCommand(),
			deleteMatchesCommand(),
			resetCommand(),
			irisCheckCommand(),
		},
	}
}

// withService opens the configured store for one command.
func withService(c *cli.Context, fn func(ctx context.Context, svc *tournament.Service) error) error {
	sc, err := config.LoadStore()
	if err != nil {
		return err
	}
	if v := c.String("backend"); v != "" {
		sc.Backend = v
	}
	if v := c.String("standings"); v != "" {
		sc.StandingsStrategy = v
	}
	if v := c.String("pairing"); v != "" {
		sc.PairingStrategy = v
	}
	ctx := c.Context
	deps, err := storebuilder.New(ctx, sc, obslog.L())
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()
	return fn(ctx, deps.Service)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create tables (postgres) or verify connectivity (other backends)",
		Action: func(c *cli.Context) error {
			// storebuilder migrates postgres on open
			return withService(c, func(ctx context.Context, svc *tournament.Service) error {
				n, err := svc.CountPlayers(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "store ready, %d players registered\n", n)
				return nil
			})
		},
	}
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:      "register",
		Usage:     "register a player",
		ArgsUsage: "<name...>",
		Action: func(c *cli.Context) error {
			name := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if name == "" {
				return errors.New("usage: swissctl register <name>")
			}
			return withService(c, func(ctx context.Context, svc *tournament.Service) error {
				id, err := svc.RegisterPlayer(ctx, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%d\t%s\n", id, name)
				return nil
			})
		},
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "record a match result",
		ArgsUsage: "<winnerID> <loserID>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("usage: swissctl report <winnerID> <loserID>")
			}
			winner, err := parseID(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("winner id: %w", err)
			}
			loser, err := parseID(c.Args().Get(1))
			if err != nil {
				return fmt.Errorf("loser id: %w", err)
			}
			return withService(c, func(ctx context.Context, svc *tournament.Service) error {
				return svc.ReportMatch(ctx, winner, loser)
			})
		},
	}
}

func standingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "standings",
		Usage: "print standings, optionally writing a PNG card",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "png", Usage: "write the standings card to this file"},
			&cli.StringFlag{Name: "title", Value: "Standings"},
		},
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, svc *tournament.Service) error {
				rows, err := svc.Standings(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RANK\tID\tNAME\tWINS\tMATCHES")
				for i, r := range rows {
					fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%d\n", i+1, r.PlayerID, r.Name, r.Wins, r.Matches)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if path := c.String("png"); path != "" {
					png, err := render.NewStandingsRenderer(0).RenderPNG(ctx, rows, c.String("title"))
					if err != nil {
						return err
					}
					return os.WriteFile(path, png, 0o644)
				}
				return nil
			})
		},
	}
}

func pairingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "pairings",
		Usage: "print the next round's pairings",
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, svc *tournament.Service) error {
				pairs, err := svc.Pairings(ctx)
				if err != nil {
					return err
				}
				for _, p := range pairs {
					fmt.Fprintf(c.App.Writer, "%d\t%s\t%d\t%s\n", p.ID1, p.Name1, p.ID2, p.Name2)
				}
				return nil
			})
		},
	}
}

func countCommand() *cli.Command {
	return &cli.Command{
		Name:  "count",
		Usage: "print the number of registered players",
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, svc *tournament.Service) error {
				n, err := svc.CountPlayers(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, n)
				return nil
			})
		},
	}
}

func deleteMatchesCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete-matches",
		Usage: "delete every match and zero the records",
		Flags: []cli.Flag{&cli.BoolFlag{Name: "yes", Usage: "confirm"}},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return errors.New("refusing without --yes")
			}
			return withService(c, func(ctx context.Context, svc *tournament.Service) error {
				return svc.DeleteMatches(ctx)
			})
		},
	}
}

func resetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "delete every match and player",
		Flags: []cli.Flag{&cli.BoolFlag{Name: "yes", Usage: "confirm"}},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return errors.New("refusing without --yes")
			}
			return withService(c, func(ctx context.Context, svc *tournament.Service) error {
				return svc.Reset(ctx)
			})
		},
	}
}

func irisCheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "iris-check",
		Usage: "check the Iris HTTP API and optionally watch the WebSocket",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "watch", Value: 10 * time.Second, Usage: "how long to print WebSocket events (0 skips)"},
		},
		Action: func(c *cli.Context) error {
			baseURL := strings.TrimSpace(os.Getenv("IRIS_BASE_URL"))
			if baseURL == "" {
				return errors.New("IRIS_BASE_URL is required")
			}
			headers := irisfast.AuthHeaders(os.Getenv("X_USER_ID"), os.Getenv("X_USER_EMAIL"), os.Getenv("X_SESSION_ID"))
			client := irisfast.NewClient(baseURL, irisfast.WithHeaderProvider(headers), irisfast.WithTimeout(8*time.Second))

			ctx, cancel := context.WithTimeout(c.Context, 5*time.Second)
			defer cancel()
			cfg, err := client.GetConfig(ctx)
			if err != nil {
				return fmt.Errorf("/config: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "/config ok: port=%d polling=%d rate=%d endpoint=%s\n",
				cfg.Port, cfg.PollingSpeed, cfg.MessageRate, cfg.WebserverEndpoint)

			wsURL := strings.TrimSpace(os.Getenv("IRIS_WS_URL"))
			watch := c.Duration("watch")
			if wsURL == "" || watch <= 0 {
				return nil
			}
			ws := irisfast.NewWebSocket(wsURL, 0, obslog.L())
			ws.SetHeaderProvider(headers)
			ws.OnStateChange(func(s irisfast.WebSocketState) {
				obslog.L().Info("ws_state", zap.Stringer("state", s))
			})
			ws.OnMessage(func(m *irisfast.Message) {
				fmt.Fprintf(c.App.Writer, "ws room=%s from=%s text=%q\n", m.Room, m.SenderName(), m.Msg)
			})
			cctx, ccancel := context.WithTimeout(c.Context, 10*time.Second)
			defer ccancel()
			if err := ws.Connect(cctx); err != nil {
				return fmt.Errorf("ws connect: %w", err)
			}
			select {
			case <-time.After(watch):
			case <-c.Context.Done():
			}
			return ws.Close(context.Background())
		},
	}
}

// parseID accepts "12" and "#12".
func parseID(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
}
