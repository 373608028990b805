package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gitlab.com/zephyrtronium/pick"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/zephyrtronium/casino/blackjack"
	"github.com/zephyrtronium/casino/channel"
	"github.com/zephyrtronium/casino/command"
	"github.com/zephyrtronium/casino/ledger"
	"github.com/zephyrtronium/casino/message"
	"github.com/zephyrtronium/casino/metrics"
	"github.com/zephyrtronium/casino/payday"
	"github.com/zephyrtronium/casino/privacy"
	"github.com/zephyrtronium/casino/relay"
	"github.com/zephyrtronium/casino/settings"
	"github.com/zephyrtronium/casino/syncmap"
)

// Bot is the overall state of the bot.
type Bot struct {
	// robo is the state visible to commands.
	robo *command.Robot
	// prefix is the command prefix.
	prefix string
	// channels is the channels the bot has seen, by channel ID.
	channels *syncmap.Map[string, *channel.Channel]
	// relay is the set of channel IDs where the relay replies.
	relay map[string]bool
	// rate is the relay rate limit for each channel.
	rate Rate
	// emotes is the emote distribution shared by all channels.
	emotes *pick.Dist[string]
	// send sends a message to chat.
	send func(ctx context.Context, msg message.Sent)
	// metrics is the bot's metrics.
	metrics *metrics.Metrics
	// dbs is the bot's databases. It is nil in tests.
	dbs *dbs
}

// New creates a bot from its configuration. The bot has no connection to
// chat until it runs.
func New(ctx context.Context, cfg *Config, relayOn bool, m *metrics.Metrics) (*Bot, error) {
	d, err := loadDBs(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	robo, err := newRobot(ctx, cfg, d, m)
	if err != nil {
		d.Close()
		return nil, err
	}
	if relayOn {
		key, err := os.ReadFile(cfg.Relay.KeyFile)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("couldn't read relay API key: %w", err)
		}
		c := relay.NewOpenAI(relay.OpenAIConfig{
			Key:         strings.TrimSpace(string(key)),
			BaseURL:     cfg.Relay.BaseURL,
			Model:       cfg.Relay.Model,
			Temperature: cfg.Relay.Temperature,
			MaxTokens:   cfg.Relay.MaxTokens,
		})
		robo.Relay = relay.New(d.transcript, c, cfg.Relay.Preamble, cfg.Discord.Name, cfg.Relay.History)
	}
	b := &Bot{
		robo:     robo,
		prefix:   cfg.Discord.Prefix,
		channels: syncmap.New[string, *channel.Channel](),
		relay:    make(map[string]bool, len(cfg.Relay.Channels)),
		rate:     cfg.Relay.Rate,
		metrics:  m,
		dbs:      d,
	}
	for _, id := range cfg.Relay.Channels {
		b.relay[id] = true
	}
	if len(cfg.Discord.Emotes) != 0 {
		b.emotes = pick.New(pick.FromMap(cfg.Discord.Emotes))
	}
	return b, nil
}

// newRobot opens the stores behind commands.
func newRobot(ctx context.Context, cfg *Config, d *dbs, m *metrics.Metrics) (*command.Robot, error) {
	l, err := ledger.Open(ctx, d.ledger)
	if err != nil {
		return nil, fmt.Errorf("couldn't open ledger: %w", err)
	}
	priv, err := privacy.Open(ctx, d.privacy)
	if err != nil {
		return nil, fmt.Errorf("couldn't open privacy list: %w", err)
	}
	if cfg.DB.Settings != "" {
		if err := os.MkdirAll(cfg.DB.Settings, 0o755); err != nil {
			return nil, fmt.Errorf("couldn't create settings directory: %w", err)
		}
	}
	eco, err := settings.OpenEconomies(settingsPath(cfg.DB, "economy.json"))
	if err != nil {
		return nil, fmt.Errorf("couldn't open economy settings: %w", err)
	}
	bj, err := settings.Open(settingsPath(cfg.DB, "blackjack.json"), settings.DefaultBlackjack, nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't open blackjack settings: %w", err)
	}
	robo := &command.Robot{
		Log:       slog.Default(),
		Owner:     cfg.Owner.ID,
		Prefix:    cfg.Discord.Prefix,
		Ledger:    l,
		Payday:    new(payday.Register),
		Economy:   eco,
		Blackjack: bj,
		Tables:    syncmap.New[string, *blackjack.Table](),
		Pause:     fseconds(cfg.Blackjack.Pause),
		Privacy:   priv,
		Metrics:   m,
	}
	if cfg.Blackjack.Images != "" {
		robo.Hands = command.URLTemplate(cfg.Blackjack.Images)
	}
	if cfg.Owner.ID == "" {
		slog.WarnContext(ctx, "no owner ID; continuing with owner commands disabled")
	}
	return robo, nil
}

// channel returns the context of a channel, creating it on first use.
func (b *Bot) channel(id, group, name string) *channel.Channel {
	ch, _ := b.channels.LoadOrStore(id, func() *channel.Channel {
		v := &channel.Channel{
			ID:     id,
			Group:  group,
			Name:   name,
			Relay:  b.relay[id],
			Emotes: b.emotes,
		}
		if b.rate.Num > 0 {
			v.Rate = rate.NewLimiter(rate.Every(fseconds(b.rate.Every)), b.rate.Num)
		}
		v.Message = func(ctx context.Context, msg message.Sent) {
			b.send(ctx, msg)
		}
		return v
	})
	return ch
}

// Run connects to Discord and serves the HTTP API until ctx is canceled.
func (b *Bot) Run(ctx context.Context, token, listen string) error {
	defer func() {
		for _, t := range b.robo.Tables.All() {
			t.Stop()
		}
		if b.dbs == nil {
			return
		}
		if err := b.dbs.Close(); err != nil {
			slog.ErrorContext(context.Background(), "couldn't close databases", slog.Any("err", err))
		}
	}()
	dc, err := b.discord(ctx, token)
	if err != nil {
		return err
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := dc.Start(); err != nil {
			return fmt.Errorf("couldn't connect to Discord: %w", err)
		}
		slog.InfoContext(ctx, "connected to Discord")
		<-ctx.Done()
		return dc.Close()
	})
	if listen != "" {
		group.Go(func() error { return b.api(ctx, listen, b.metrics.Collectors()) })
	}
	err = group.Wait()
	if err == context.Canceled {
		// If the first error is context canceled, then we are shutting down
		// normally in response to a sigint.
		err = nil
	}
	return err
}
