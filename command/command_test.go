package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zephyrtronium/casino/blackjack"
	"github.com/zephyrtronium/casino/channel"
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

func testPool(t *testing.T) *sqlitex.Pool {
	t.Helper()
	k := dbcount.Add(1)
	pool, err := sqlitex.NewPool(fmt.Sprintf("file:command%d.db?mode=memory&cache=shared", k), sqlitex.PoolOptions{Flags: sqlite.OpenReadWrite | sqlite.OpenCreate | sqlite.OpenMemory | sqlite.OpenSharedCache | sqlite.OpenURI})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

type scripted struct {
	reply  string
	prompt []relay.Message
}

func (s *scripted) Complete(ctx context.Context, prompt []relay.Message) (string, error) {
	s.prompt = prompt
	return s.reply, nil
}

type fixture struct {
	robo  *Robot
	ch    *channel.Channel
	sent  chan message.Sent
	clock *time.Time
	comp  *scripted
	tr    *relay.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	l, err := ledger.Open(ctx, &ledger.Memory{})
	if err != nil {
		t.Fatal(err)
	}
	l.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	eco, err := settings.OpenEconomies(filepath.Join(dir, "economy.json"))
	if err != nil {
		t.Fatal(err)
	}
	bj, err := settings.Open(filepath.Join(dir, "blackjack.json"), settings.DefaultBlackjack, nil)
	if err != nil {
		t.Fatal(err)
	}
	pool := testPool(t)
	if err := privacy.Init(ctx, pool); err != nil {
		t.Fatal(err)
	}
	priv, err := privacy.Open(ctx, pool)
	if err != nil {
		t.Fatal(err)
	}
	clock := time.Date(2024, 2, 21, 12, 0, 0, 0, time.UTC)
	comp := &scripted{reply: "hi"}
	tr := &relay.Memory{}
	f := &fixture{
		robo: &Robot{
			Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
			Owner:     "owner",
			Prefix:    "!",
			Ledger:    l,
			Payday:    &payday.Register{},
			Economy:   eco,
			Blackjack: bj,
			Tables:    syncmap.New[string, *blackjack.Table](),
			Pause:     time.Millisecond,
			Relay:     relay.New(tr, comp, "pre", "Robot", 0),
			Privacy:   priv,
			Metrics:   metrics.Discard(),
		},
		sent:  make(chan message.Sent, 64),
		clock: &clock,
		comp:  comp,
		tr:    tr,
	}
	f.robo.Clock = func() time.Time { return *f.clock }
	f.ch = &channel.Channel{
		ID:    "chan",
		Group: "kessoku",
		Name:  "#starry",
		Message: func(ctx context.Context, msg message.Sent) {
			f.sent <- msg
		},
		Relay: true,
	}
	return f
}

// call creates an invocation from a user.
func (f *fixture) call(user string, args map[string]string) *Invocation {
	return &Invocation{
		Channel: f.ch,
		Message: &message.Received{
			ID:        "msg-" + user,
			To:        f.ch.ID,
			Group:     f.ch.Group,
			Sender:    user,
			Name:      strings.ToUpper(user[:1]) + user[1:],
			Text:      "text from " + user,
			Timestamp: f.clock.UnixMilli(),
			Mentions:  map[string]string{"ryou": "Ryou", "kita": "Kita"},
		},
		Args: args,
	}
}

// next returns the next sent message.
func (f *fixture) next(t *testing.T) message.Sent {
	t.Helper()
	select {
	case m := <-f.sent:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("no message sent")
		panic("unreachable")
	}
}

// expect checks that the next message contains a substring.
func (f *fixture) expect(t *testing.T, want string) message.Sent {
	t.Helper()
	m := f.next(t)
	if !strings.Contains(text(m), want) {
		t.Errorf("message %q doesn't contain %q", text(m), want)
	}
	return m
}

// wait discards messages until one contains a substring.
func (f *fixture) wait(t *testing.T, want string) message.Sent {
	t.Helper()
	for {
		m := f.next(t)
		if strings.Contains(text(m), want) {
			return m
		}
	}
}

// quiet checks that nothing was sent.
func (f *fixture) quiet(t *testing.T) {
	t.Helper()
	select {
	case m := <-f.sent:
		t.Errorf("unexpected message %q", text(m))
	default:
	}
}

// text flattens a message and its embed.
func text(m message.Sent) string {
	s := []string{m.Text}
	if e := m.Embed; e != nil {
		s = append(s, e.Title, e.Description, e.Author)
		for _, f := range e.Fields {
			s = append(s, f.Name+": "+f.Value)
		}
	}
	return strings.Join(s, "\n")
}

func (f *fixture) balance(t *testing.T, user string) int64 {
	t.Helper()
	n, err := f.robo.Ledger.Balance(f.ch.Group, user)
	if err != nil {
		t.Fatalf("couldn't get balance of %s: %v", user, err)
	}
	return n
}

func (f *fixture) open(t *testing.T, user string, bal int64) {
	t.Helper()
	if err := f.robo.Ledger.Create(context.Background(), f.ch.Group, user, strings.ToUpper(user[:1])+user[1:], bal); err != nil {
		t.Fatal(err)
	}
}
