package command

import (
	"context"

	"github.com/zephyrtronium/casino/channel"
	"github.com/zephyrtronium/casino/message"
)

// Invocation is a command invocation. An Invocation and its fields must not
// be modified or retained by any command.
type Invocation struct {
	// Channel is the channel where the invocation occurred.
	Channel *channel.Channel
	// Message is the message which triggered the invocation. It is always
	// non-nil, but not all fields are guaranteed to be populated.
	Message *message.Received
	// Args is the parsed arguments to the command.
	Args map[string]string
}

// Func executes a command.
// The context passed to a command lives as long as the bot, so commands may
// start work that outlives the invocation.
type Func func(ctx context.Context, robo *Robot, call *Invocation)

// reply sends a reply to the invoking message.
func (call *Invocation) reply(ctx context.Context, msg message.Sent) {
	msg.Reply = call.Message.ID
	msg.To = call.Channel.ID
	call.Channel.Message(ctx, msg)
}

// say sends a message to the invocation's channel without replying.
func (call *Invocation) say(ctx context.Context, msg message.Sent) {
	msg.To = call.Channel.ID
	call.Channel.Message(ctx, msg)
}

// mentioned returns the display name of a user mentioned in the invocation,
// falling back to the name on their account or their ID.
func (call *Invocation) mentioned(robo *Robot, user string) string {
	if n := call.Message.Mentions[user]; n != "" {
		return n
	}
	if a, ok := robo.Ledger.Account(call.Channel.Group, user); ok {
		return a.Name
	}
	return user
}
