package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/zephyrtronium/casino/command"
	"github.com/zephyrtronium/casino/ledger"
	"github.com/zephyrtronium/casino/ledger/sqlledger"
	"github.com/zephyrtronium/casino/metrics"
	"github.com/zephyrtronium/casino/privacy"
)

var app = cli.Command{
	Name:  "casino",
	Usage: "Discord casino and chat bot",

	Flags: []cli.Flag{
		&flagConfig,
		&flagLog,
		&flagLogFormat,
	},
	Commands: []*cli.Command{
		{
			Name:   "init",
			Usage:  "Create database schemas and the settings directory",
			Action: cliInit,
		},
		{
			Name:    "leaderboard",
			Aliases: []string{"top"},
			Usage:   "Print a server's leaderboard without connecting",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "group",
					Usage: "Server ID to rank, or empty for all servers",
				},
				&cli.IntFlag{
					Name:  "n",
					Usage: "Number of accounts to print",
					Value: 10,
				},
			},
			Action: cliLeaderboard,
		},
	},
	Action: cliRun,

	Authors: []any{
		"Branden J Brown  @zephyrtronium",
	},
	Copyright: "Copyright 2024 Branden J Brown",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	go func() {
		<-ctx.Done()
		stop()
	}()
	err := app.Run(ctx, os.Args)
	if err != nil {
		fmt.Println(err)
	}
}

func loadConfig(ctx context.Context, cmd *cli.Command) (*Config, bool, error) {
	r, err := os.Open(cmd.String("config"))
	if err != nil {
		return nil, false, fmt.Errorf("couldn't open config file: %w", err)
	}
	defer r.Close()
	cfg, md, err := Load(ctx, r)
	if err != nil {
		return nil, false, fmt.Errorf("couldn't load config: %w", err)
	}
	return cfg, md.IsDefined("relay"), nil
}

func cliRun(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, relayOn, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	token, err := os.ReadFile(cfg.Discord.TokenFile)
	if err != nil {
		return fmt.Errorf("couldn't read Discord token: %w", err)
	}
	bot, err := New(ctx, cfg, relayOn, newMetrics())
	if err != nil {
		return err
	}
	return bot.Run(ctx, strings.TrimSpace(string(token)), cfg.HTTP.Listen)
}

func cliInit(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, _, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	d, err := loadDBs(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer d.Close()
	if d.sql != nil {
		if err := sqlledger.Init(ctx, d.sql); err != nil {
			return err
		}
		slog.InfoContext(ctx, "initialized ledger", slog.String("db", cfg.DB.Ledger))
	}
	if err := privacy.Init(ctx, d.privacy); err != nil {
		return err
	}
	slog.InfoContext(ctx, "initialized privacy list", slog.String("db", cfg.DB.Privacy))
	if cfg.DB.Settings != "" {
		if err := os.MkdirAll(cfg.DB.Settings, 0o755); err != nil {
			return fmt.Errorf("couldn't create settings directory: %w", err)
		}
	}
	return nil
}

func cliLeaderboard(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, _, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	d, err := loadDBs(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer d.Close()
	l, err := ledger.Open(ctx, d.ledger)
	if err != nil {
		return fmt.Errorf("couldn't open ledger: %w", err)
	}
	var accts []ledger.Account
	if g := cmd.String("group"); g != "" {
		accts = l.Accounts(g)
	} else {
		accts = l.All()
	}
	if len(accts) == 0 {
		return errors.New("no accounts")
	}
	fmt.Print(command.FormatLeaderboard(accts, int(cmd.Int("n"))))
	return nil
}

var (
	flagConfig = cli.StringFlag{
		Name:       "config",
		Required:   true,
		Usage:      "TOML config file",
		Persistent: true,
		Action: func(ctx context.Context, cmd *cli.Command, s string) error {
			i, err := os.Stat(s)
			if err != nil {
				return err
			}
			if !i.Mode().IsRegular() {
				return errors.New("config must be a regular file")
			}
			return nil
		},
	}

	flagLog = cli.StringFlag{
		Name:       "log",
		Usage:      "Logging level, one of debug, info, warn, error",
		Value:      "info",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			var l slog.Level
			return l.UnmarshalText([]byte(s))
		},
	}

	flagLogFormat = cli.StringFlag{
		Name:       "log-format",
		Usage:      "Logging format, either text or json",
		Value:      "text",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			switch strings.ToLower(s) {
			case "text", "json":
				return nil
			default:
				return errors.New("unknown logging format")
			}
		},
	}
)

func loggerFromFlags(cmd *cli.Command) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(cmd.String("log"))); err != nil {
		panic(err)
	}
	var h slog.Handler
	switch strings.ToLower(cmd.String("log-format")) {
	case "text":
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	case "json":
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	}
	return slog.New(h)
}

// metrics configuration
func newMetrics() *metrics.Metrics {
	return &metrics.Metrics{
		MessageCount: metrics.NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "casino",
					Subsystem: "discord",
					Name:      "messages",
					Help:      "Number of guild messages received from Discord.",
				},
			),
		),
		CommandCount: metrics.NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "casino",
					Subsystem: "discord",
					Name:      "commands",
					Help:      "Number of command invocations by command.",
				},
				[]string{"command"},
			),
		),
		RoundCount: metrics.NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "casino",
					Subsystem: "blackjack",
					Name:      "rounds",
					Help:      "Number of blackjack rounds settled.",
				},
			),
		),
		Wagered: metrics.NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "casino",
					Subsystem: "blackjack",
					Name:      "wagered",
					Help:      "Credits staked on blackjack hands, including doubles and splits.",
				},
			),
		),
		PaidOut: metrics.NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "casino",
					Subsystem: "blackjack",
					Name:      "paid_out",
					Help:      "Credits paid to players by blackjack settlements.",
				},
			),
		),
		ActiveTables: metrics.NewPromGauge(
			prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "casino",
					Subsystem: "blackjack",
					Name:      "tables",
					Help:      "Number of blackjack tables running.",
				},
			),
		),
		RelayCount: metrics.NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "casino",
					Subsystem: "relay",
					Name:      "replies",
					Help:      "Number of relay replies sent.",
				},
			),
		),
		RelayLatency: metrics.NewPromObserverVec(
			prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
					Namespace: "casino",
					Subsystem: "relay",
					Name:      "latency",
					Help:      "How long completions take in seconds, including skipped ones.",
				},
				[]string{"channel"},
			),
		),
		PaydayClaimed: metrics.NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "casino",
					Subsystem: "bank",
					Name:      "payday",
					Help:      "Number of paydays claimed.",
				},
			),
		),
	}
}
