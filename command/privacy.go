package command

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/zephyrtronium/casino/message"
)

// Private stops the relay from recording the invoker's conversations and
// deletes what it has recorded.
func Private(ctx context.Context, robo *Robot, call *Invocation) {
	user := call.Message.Sender
	err := robo.Privacy.Add(ctx, user, robo.now())
	if err != nil {
		robo.Log.ErrorContext(ctx, "privacy add failed", slog.Any("err", err), slog.String("channel", call.Channel.Name))
		call.reply(ctx, message.Format("", "", "Something went wrong while trying to add you to the privacy list. Try again. Sorry!"))
		return
	}
	if robo.Relay != nil {
		if err := robo.Relay.Forget(ctx, user); err != nil {
			robo.Log.ErrorContext(ctx, "couldn't forget transcript", slog.Any("err", err), slog.String("user", user))
			call.reply(ctx, message.Format("", "", "You're on the privacy list, but something went wrong deleting our old conversations. Ask again to retry."))
			return
		}
	}
	e := call.Channel.Emote(rand.Uint32())
	call.reply(ctx, message.Format("", "", "Sure, I won't remember our conversations anymore, and I've forgotten the ones we had. I'll still reply when you talk to me. Use %srelay unprivate to let me remember again. %s", robo.Prefix, e))
}

// Unprivate lets the relay record the invoker's conversations again.
func Unprivate(ctx context.Context, robo *Robot, call *Invocation) {
	err := robo.Privacy.Remove(ctx, call.Message.Sender)
	if err != nil {
		robo.Log.ErrorContext(ctx, "privacy remove failed", slog.Any("err", err), slog.String("channel", call.Channel.Name))
		call.reply(ctx, message.Format("", "", "Something went wrong while trying to remove you from the privacy list. Try again. Sorry!"))
		return
	}
	e := call.Channel.Emote(rand.Uint32())
	call.reply(ctx, message.Format("", "", "Sure, I'll remember our conversations again! %s", e))
}
