// Package channel holds the per-channel context in which commands and the
// relay run.
package channel

import (
	"context"

	"gitlab.com/zephyrtronium/pick"
	"golang.org/x/time/rate"

	"github.com/zephyrtronium/casino/message"
)

type Channel struct {
	// ID is the ID of the channel.
	ID string
	// Group is the ID of the server containing the channel.
	Group string
	// Name is the name of the channel.
	Name string
	// Message sends a message to the channel with an optional reply message ID.
	Message func(ctx context.Context, msg message.Sent)
	// Relay indicates whether the chat relay answers in the channel.
	Relay bool
	// Rate is the rate limiter for relay replies. Prompts in excess of the
	// rate limit are dropped.
	Rate *rate.Limiter
	// Emotes is the distribution of emotes decorating replies.
	Emotes *pick.Dist[string]
}

// Emote picks a random emote, or the empty string if the channel has none.
func (ch *Channel) Emote(r uint32) string {
	if ch.Emotes == nil {
		return ""
	}
	return ch.Emotes.Pick(r)
}
