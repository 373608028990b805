package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

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

var dbcount atomic.Uint64

type echo struct {
	prompt []relay.Message
}

func (e *echo) Complete(ctx context.Context, prompt []relay.Message) (string, error) {
	e.prompt = prompt
	return "you said " + prompt[len(prompt)-1].Content, nil
}

// testBot creates a bot whose messages go to the returned channel.
func testBot(t *testing.T) (*Bot, chan message.Sent, *echo) {
	t.Helper()
	ctx := context.Background()
	l, err := ledger.Open(ctx, &ledger.Memory{})
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	eco, err := settings.OpenEconomies(filepath.Join(dir, "economy.json"))
	if err != nil {
		t.Fatal(err)
	}
	bj, err := settings.Open(filepath.Join(dir, "blackjack.json"), settings.DefaultBlackjack, nil)
	if err != nil {
		t.Fatal(err)
	}
	k := dbcount.Add(1)
	pool, err := sqlitex.NewPool(fmt.Sprintf("file:main%d.db?mode=memory&cache=shared", k), sqlitex.PoolOptions{Flags: sqlite.OpenReadWrite | sqlite.OpenCreate | sqlite.OpenMemory | sqlite.OpenSharedCache | sqlite.OpenURI})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pool.Close() })
	if err := privacy.Init(ctx, pool); err != nil {
		t.Fatal(err)
	}
	priv, err := privacy.Open(ctx, pool)
	if err != nil {
		t.Fatal(err)
	}
	comp := new(echo)
	m := metrics.Discard()
	sent := make(chan message.Sent, 16)
	b := &Bot{
		robo: &command.Robot{
			Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
			Owner:     "1",
			Prefix:    "!",
			Ledger:    l,
			Payday:    new(payday.Register),
			Economy:   eco,
			Blackjack: bj,
			Tables:    syncmap.New[string, *blackjack.Table](),
			Pause:     time.Millisecond,
			Relay:     relay.New(new(relay.Memory), comp, "", "Starry", 0),
			Privacy:   priv,
			Metrics:   m,
		},
		prefix:   "!",
		channels: syncmap.New[string, *channel.Channel](),
		relay:    map[string]bool{"relay": true},
		rate:     Rate{Every: 60, Num: 5},
		metrics:  m,
		send: func(ctx context.Context, msg message.Sent) {
			sent <- msg
		},
	}
	return b, sent, comp
}

// recv returns the next sent message, or fails if there is none.
func recv(t *testing.T, sent chan message.Sent) message.Sent {
	t.Helper()
	select {
	case m := <-sent:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("no message sent")
		panic("unreachable")
	}
}

// none checks that nothing was sent.
func none(t *testing.T, sent chan message.Sent) {
	t.Helper()
	select {
	case m := <-sent:
		t.Errorf("unexpected message %+v", m)
	default:
	}
}

func TestChannel(t *testing.T) {
	b, sent, _ := testBot(t)
	ch := b.channel("relay", "kessoku", "starry")
	if ch.ID != "relay" || ch.Group != "kessoku" || ch.Name != "starry" {
		t.Errorf("wrong channel %+v", ch)
	}
	if !ch.Relay {
		t.Errorf("relay channel isn't relay")
	}
	if ch.Rate == nil || ch.Rate.Burst() != 5 {
		t.Errorf("wrong rate limit")
	}
	if got := b.channel("relay", "other", "other"); got != ch {
		t.Errorf("channel recreated: %+v", got)
	}
	other := b.channel("games", "kessoku", "games")
	if other.Relay {
		t.Errorf("non-relay channel is relay")
	}
	ch.Message(context.Background(), message.Sent{To: "relay", Text: "bocchi"})
	if m := recv(t, sent); m.Text != "bocchi" {
		t.Errorf("wrong message sent: %+v", m)
	}
	if ch.Emote(0) != "" {
		t.Errorf("emote without emotes")
	}
}
