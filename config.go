package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zephyrtronium/casino/ledger"
	"github.com/zephyrtronium/casino/ledger/jsonledger"
	"github.com/zephyrtronium/casino/ledger/sqlledger"
	"github.com/zephyrtronium/casino/relay"
	"github.com/zephyrtronium/casino/relay/jsontranscript"
	"github.com/zephyrtronium/casino/relay/kvtranscript"
)

// Load loads the bot's TOML configuration.
func Load(ctx context.Context, r io.Reader) (*Config, *toml.MetaData, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't decode config: %w", err)
	}
	expandcfg(&cfg, os.Getenv)
	return &cfg, &md, nil
}

// Config is the marshaled structure of the bot's configuration.
type Config struct {
	// Owner is the table of metadata about the owner.
	Owner Owner `toml:"owner"`
	// Discord is the configuration for connecting to Discord.
	Discord DiscordCfg `toml:"discord"`
	// DB is the table of database locations.
	DB DBCfg `toml:"db"`
	// Blackjack is host configuration for blackjack tables. Limits and
	// timings are runtime settings instead.
	Blackjack BlackjackCfg `toml:"blackjack"`
	// Relay is the configuration for the chat relay. If the table is absent,
	// the relay is disabled.
	Relay RelayCfg `toml:"relay"`
	// HTTP is the configuration for the metrics and API server.
	HTTP HTTPCfg `toml:"http"`
}

// Owner is metadata about the bot owner.
type Owner struct {
	// ID is the owner's Discord user ID. Owner commands are disabled when it
	// is empty.
	ID string `toml:"id"`
	// Name is the name of the owner. It does not need to be a username.
	Name string `toml:"name"`
	// Contact describes owner contact information.
	Contact string `toml:"contact"`
}

// DiscordCfg is the configuration for the Discord session.
type DiscordCfg struct {
	// TokenFile is the path to a file containing the bot token.
	TokenFile string `toml:"token"`
	// Prefix is the command prefix.
	Prefix string `toml:"prefix"`
	// Name is the name under which the bot's own lines are kept in relay
	// transcripts.
	Name string `toml:"name"`
	// Emotes is the emotes and their weights decorating some replies.
	Emotes map[string]int `toml:"emotes"`
}

// DBCfg is the configuration of databases.
type DBCfg struct {
	// Ledger is the ledger file path or SQLite DSN.
	Ledger string `toml:"ledger"`
	// LedgerBackend is "json" or "sqlite".
	LedgerBackend string `toml:"ledger_backend"`
	// Transcript is the relay transcript file path or Badger directory.
	Transcript string `toml:"transcript"`
	// TranscriptBackend is "json" or "badger".
	TranscriptBackend string `toml:"transcript_backend"`
	// KVFlag is a Badger superflag for the transcript database.
	KVFlag string `toml:"kvflag"`
	// Privacy is the SQLite DSN of the privacy list.
	// It may be the same as the ledger DSN.
	Privacy string `toml:"privacy"`
	// Settings is the directory holding runtime settings files.
	Settings string `toml:"settings"`
}

// BlackjackCfg is the configuration of blackjack tables.
type BlackjackCfg struct {
	// Pause is the delay between rounds in seconds.
	Pause float64 `toml:"pause"`
	// Images is a URL template for hand images. It may refer to ${cards}
	// and ${player}. Hands have no images when it is empty.
	Images string `toml:"images"`
}

// RelayCfg is the configuration of the chat relay.
type RelayCfg struct {
	// Channels is the list of channel IDs in which the relay replies.
	Channels []string `toml:"channels"`
	// KeyFile is the path to a file containing the completion API key.
	KeyFile string `toml:"key"`
	// BaseURL is the completion API base URL. Empty means OpenAI's.
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int64   `toml:"max_tokens"`
	// Preamble is the system message. It may refer to the bot's name as
	// ${name}; note that environment expansion does not apply to it.
	Preamble string `toml:"preamble"`
	// History is the number of transcript lines in each prompt.
	// Zero or less means the whole transcript.
	History int `toml:"history"`
	// Rate is the rate limit for replies in each channel.
	Rate Rate `toml:"rate"`
}

// HTTPCfg is the configuration of the HTTP server.
type HTTPCfg struct {
	Listen string `toml:"listen"`
}

// Rate is a rate limit configuration.
type Rate struct {
	Every float64 `toml:"every"`
	Num   int     `toml:"num"`
}

func expandcfg(cfg *Config, expand func(s string) string) {
	fields := []*string{
		&cfg.Owner.ID,
		&cfg.Owner.Name,
		&cfg.Owner.Contact,
		&cfg.Discord.TokenFile,
		&cfg.DB.Ledger,
		&cfg.DB.Transcript,
		&cfg.DB.KVFlag,
		&cfg.DB.Privacy,
		&cfg.DB.Settings,
		&cfg.Relay.KeyFile,
		&cfg.Relay.BaseURL,
		&cfg.HTTP.Listen,
	}
	for _, f := range fields {
		*f = os.Expand(*f, expand)
	}
	for i, s := range cfg.Relay.Channels {
		cfg.Relay.Channels[i] = os.Expand(s, expand)
	}
}

// dbs is the set of opened databases.
type dbs struct {
	ledger     ledger.Store
	transcript relay.Transcript
	privacy    *sqlitex.Pool

	kv  *badger.DB
	sql *sqlitex.Pool
}

// Close closes every database.
func (d *dbs) Close() error {
	var errs []error
	if d.kv != nil {
		errs = append(errs, d.kv.Close())
	}
	if d.sql != nil {
		errs = append(errs, d.sql.Close())
	}
	if d.privacy != nil && d.privacy != d.sql {
		errs = append(errs, d.privacy.Close())
	}
	return errors.Join(errs...)
}

func loadDBs(ctx context.Context, cfg DBCfg) (*dbs, error) {
	d := new(dbs)
	var err error
	switch strings.ToLower(cfg.LedgerBackend) {
	case "", "json":
		slog.DebugContext(ctx, "using json ledger", slog.String("path", cfg.Ledger))
		d.ledger = jsonledger.New(cfg.Ledger)
	case "sqlite":
		slog.DebugContext(ctx, "using sqlite ledger", slog.String("path", cfg.Ledger))
		d.sql, err = sqlitex.NewPool(cfg.Ledger, sqlitex.PoolOptions{})
		if err != nil {
			return nil, fmt.Errorf("couldn't open ledger db: %w", err)
		}
		d.ledger, err = sqlledger.Open(ctx, d.sql)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("couldn't open ledger: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown ledger backend %q; use json or sqlite", cfg.LedgerBackend)
	}

	switch strings.ToLower(cfg.TranscriptBackend) {
	case "", "json":
		slog.DebugContext(ctx, "using json transcripts", slog.String("path", cfg.Transcript))
		d.transcript, err = jsontranscript.Open(cfg.Transcript)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("couldn't open transcripts: %w", err)
		}
	case "badger":
		slog.DebugContext(ctx, "using badger transcripts", slog.String("path", cfg.Transcript), slog.String("flags", cfg.KVFlag))
		opts := badger.DefaultOptions(cfg.Transcript)
		opts = opts.WithLogger(nil)
		opts = opts.WithCompression(options.None)
		d.kv, err = badger.Open(opts.FromSuperFlag(cfg.KVFlag))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("couldn't open transcript db: %w", err)
		}
		d.transcript = kvtranscript.New(d.kv)
	default:
		d.Close()
		return nil, fmt.Errorf("unknown transcript backend %q; use json or badger", cfg.TranscriptBackend)
	}

	switch {
	case d.sql != nil && cfg.Privacy == cfg.Ledger:
		slog.DebugContext(ctx, "privacy db shared with ledger")
		d.privacy = d.sql
	default:
		slog.DebugContext(ctx, "privacy db", slog.String("path", cfg.Privacy))
		d.privacy, err = sqlitex.NewPool(cfg.Privacy, sqlitex.PoolOptions{})
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("couldn't open privacy db: %w", err)
		}
	}
	return d, nil
}

// settingsPath returns the path of a settings file.
func settingsPath(cfg DBCfg, name string) string {
	return filepath.Join(cfg.Settings, name)
}

func fseconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
