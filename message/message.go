// Package message models messages received from and sent to chat.
package message

import (
	"fmt"
	"strings"
	"time"
)

// Received is a message received from chat.
type Received struct {
	// ID is the unique ID of the message.
	ID string
	// To is the ID of the channel where the message was sent.
	To string
	// Group is the ID of the server containing the channel.
	// Accounts and tables are scoped to groups.
	Group string
	// Sender is the unique ID of the message sender.
	Sender string
	// Name is the display name of the message sender.
	Name string
	// Avatar is the URL of the sender's avatar, if any.
	Avatar string
	// Text is the text of the message.
	Text string
	// Mentions maps the IDs of users mentioned in the message to their
	// display names.
	Mentions map[string]string
	// Timestamp is the timestamp of the message as milliseconds since the
	// Unix epoch.
	Timestamp int64
	// IsAdmin indicates whether the sender can manage the server to which the
	// message was sent.
	IsAdmin bool
}

func (m *Received) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Sent is a message to be sent to chat.
type Sent struct {
	// Reply is a message to reply to. If empty, the message is not interpreted
	// as a reply.
	Reply string
	// To is the channel to which the message is sent.
	To string
	// Text is the message text.
	Text string
	// Embed is rich content to attach to the message.
	Embed *Embed
}

// Embed is a rich content card.
type Embed struct {
	Title       string
	Description string
	// Author and AuthorIcon label the card with a user.
	Author     string
	AuthorIcon string
	// Color is the RGB color of the card's accent.
	Color  int
	Fields []Field
	// Image is the URL of an image to show in the card.
	Image string
}

// Field is a titled section of an embed.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Embed colors.
const (
	Green = 0x2ecc71
	Red   = 0xe74c3c
	Gold  = 0xf1c40f
	Blue  = 0x3498db
)

// formatString is a type to prevent misuse of format strings passed to [Format].
type formatString string

// Format constructs a message to send from a format string literal and
// formatting arguments.
func Format(reply, to string, f formatString, args ...any) Sent {
	return Sent{
		Reply: reply,
		To:    to,
		Text:  strings.TrimSpace(fmt.Sprintf(string(f), args...)),
	}
}
