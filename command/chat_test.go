package command

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/zephyrtronium/casino/relay"
)

func TestChat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	Chat(ctx, f.robo, f.call("bocchi", nil))
	m := f.expect(t, "hi")
	if m.Reply != "msg-bocchi" || m.To != "chan" {
		t.Errorf("reply not addressed to invocation: %+v", m)
	}
	lines, err := f.tr.Lines(ctx, "bocchi")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("wrong transcript length %d: %+v", len(lines), lines)
	}
	if lines[0].Name != "Bocchi" || lines[0].Content != "text from bocchi" {
		t.Errorf("wrong first line %+v", lines[0])
	}
	if lines[1].Name != "Robot" || lines[1].Content != "hi" {
		t.Errorf("wrong reply line %+v", lines[1])
	}

	Chat(ctx, f.robo, f.call("bocchi", nil))
	f.expect(t, "hi")
	want := []relay.Role{relay.System, relay.User, relay.Assistant, relay.User}
	if len(f.comp.prompt) != len(want) {
		t.Fatalf("wrong prompt %+v", f.comp.prompt)
	}
	for i, r := range want {
		if f.comp.prompt[i].Role != r {
			t.Errorf("wrong role for message %d: want %s, got %s", i, r, f.comp.prompt[i].Role)
		}
	}
}

func TestChatSkip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.comp.reply = "Skip."
	Chat(ctx, f.robo, f.call("bocchi", nil))
	f.quiet(t)
	lines, err := f.tr.Lines(ctx, "bocchi")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 {
		t.Errorf("skipped reply changed transcript: %+v", lines)
	}
}

func TestChatNotRelay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ch.Relay = false
	Chat(ctx, f.robo, f.call("bocchi", nil))
	f.quiet(t)
	if f.comp.prompt != nil {
		t.Errorf("completion requested in non-relay channel")
	}
	f.robo.Relay = nil
	f.ch.Relay = true
	Chat(ctx, f.robo, f.call("bocchi", nil))
	f.quiet(t)
}

func TestChatRate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ch.Rate = rate.NewLimiter(rate.Every(time.Hour), 1)
	Chat(ctx, f.robo, f.call("bocchi", nil))
	f.expect(t, "hi")
	Chat(ctx, f.robo, f.call("bocchi", nil))
	f.quiet(t)
	lines, err := f.tr.Lines(ctx, "bocchi")
	if err != nil {
		t.Fatal(err)
	}
	// Message, reply, and the message heard while limited.
	if len(lines) != 3 {
		t.Errorf("wrong transcript length %d: %+v", len(lines), lines)
	}
}

func TestPrivate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	Chat(ctx, f.robo, f.call("bocchi", nil))
	f.expect(t, "hi")

	Private(ctx, f.robo, f.call("bocchi", nil))
	f.expect(t, "I won't remember our conversations anymore")
	lines, err := f.tr.Lines(ctx, "bocchi")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 0 {
		t.Errorf("transcript not forgotten: %+v", lines)
	}

	Chat(ctx, f.robo, f.call("bocchi", nil))
	f.expect(t, "hi")
	if len(f.comp.prompt) != 2 {
		t.Errorf("private prompt has history: %+v", f.comp.prompt)
	}
	lines, err = f.tr.Lines(ctx, "bocchi")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 0 {
		t.Errorf("private conversation recorded: %+v", lines)
	}

	Unprivate(ctx, f.robo, f.call("bocchi", nil))
	f.expect(t, "I'll remember our conversations again")
	Chat(ctx, f.robo, f.call("bocchi", nil))
	f.expect(t, "hi")
	lines, err = f.tr.Lines(ctx, "bocchi")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Errorf("conversation not recorded after unprivate: %+v", lines)
	}
}
