package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/zephyrtronium/casino/message"
	"github.com/zephyrtronium/casino/privacy"
	"github.com/zephyrtronium/casino/relay"
)

// Chat relays a message that isn't a command.
// Messages beyond the channel's rate limit are recorded without a reply.
func Chat(ctx context.Context, robo *Robot, call *Invocation) {
	ch, m := call.Channel, call.Message
	if robo.Relay == nil || !ch.Relay {
		return
	}
	turn := relay.Turn{
		User:    m.Sender,
		Name:    m.Name,
		Content: m.Text,
		Time:    m.Time(),
	}
	switch err := robo.Privacy.Check(ctx, m.Sender); {
	case err == nil: // do nothing
	case errors.Is(err, privacy.ErrPrivate):
		turn.Private = true
	default:
		robo.Log.ErrorContext(ctx, "couldn't check privacy", slog.Any("err", err), slog.String("user", m.Sender))
		return
	}
	if ch.Rate != nil && !ch.Rate.Allow() {
		if err := robo.Relay.Hear(ctx, turn); err != nil {
			robo.Log.ErrorContext(ctx, "couldn't record message", slog.Any("err", err), slog.String("channel", ch.Name))
		}
		return
	}
	start := time.Now()
	reply, err := robo.Relay.Converse(ctx, turn)
	robo.Metrics.RelayLatency.Observe(time.Since(start).Seconds(), ch.Name)
	if err != nil {
		robo.Log.ErrorContext(ctx, "relay failed", slog.Any("err", err), slog.String("channel", ch.Name))
		return
	}
	if reply == "" {
		robo.Log.DebugContext(ctx, "relay skipped", slog.String("channel", ch.Name))
		return
	}
	robo.Metrics.RelayCount.Observe(1)
	call.reply(ctx, message.Sent{Text: reply})
}
