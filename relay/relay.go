// Package relay relays chat to a completion model, keeping a transcript of
// each user's conversation with the bot.
package relay

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Line is one message in a transcript.
type Line struct {
	// Name is the display name of the speaker. Lines spoken by the bot have
	// the bot's name.
	Name    string
	Content string
	Time    time.Time
}

// Transcript stores conversations by user.
type Transcript interface {
	// Append adds a line to a user's conversation.
	Append(ctx context.Context, user string, line Line) error
	// Lines returns a user's conversation in order.
	Lines(ctx context.Context, user string) ([]Line, error)
	// Forget deletes a user's conversation.
	Forget(ctx context.Context, user string) error
}

// Role is the role of a message in a prompt.
type Role string

const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
)

// Message is a role-tagged prompt message.
type Message struct {
	Role    Role
	Content string
}

// Completer produces a completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt []Message) (string, error)
}

// Prompt formats a conversation as a prompt. The preamble is the system
// message. Lines spoken by bot are assistant messages; all others are user
// messages.
func Prompt(preamble, bot string, lines []Line) []Message {
	r := make([]Message, 0, len(lines)+1)
	r = append(r, Message{Role: System, Content: preamble})
	for _, l := range lines {
		role := User
		if l.Name == bot {
			role = Assistant
		}
		r = append(r, Message{Role: role, Content: l.Content})
	}
	return r
}

// IsSkip reports whether a completion declines to reply, i.e. contains the
// word "skip" in any case and with any punctuation.
func IsSkip(s string) bool {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	for _, w := range strings.Fields(s) {
		if w == "skip" {
			return true
		}
	}
	return false
}

// DefaultPreamble is the system message used when none is configured.
const DefaultPreamble = `You are ${name}, a regular in a small Discord server. ` +
	`You talk casually in short messages, like the other people in chat. ` +
	`You never say you are an AI. ` +
	`If a message doesn't need an answer from you, reply with exactly "skip".`

// Relay relays conversations.
type Relay struct {
	transcript Transcript
	completer  Completer
	preamble   string
	name       string
	history    int
	now        func() time.Time
}

// New creates a relay. The preamble may refer to the bot's name as ${name}.
// If history is positive, prompts include at most that many of the most
// recent lines.
func New(transcript Transcript, completer Completer, preamble, name string, history int) *Relay {
	if preamble == "" {
		preamble = DefaultPreamble
	}
	preamble = strings.ReplaceAll(preamble, "${name}", name)
	return &Relay{
		transcript: transcript,
		completer:  completer,
		preamble:   preamble,
		name:       name,
		history:    history,
		now:        time.Now,
	}
}

// Name returns the bot's name as it appears in transcripts.
func (r *Relay) Name() string {
	return r.name
}

// Turn is a message to relay.
type Turn struct {
	// User is the speaker's user ID.
	User string
	// Name is the speaker's display name.
	Name    string
	Content string
	Time    time.Time
	// Private means the message and its reply are not recorded, and the
	// prompt includes no history.
	Private bool
}

// Converse records a message and returns the bot's reply to it.
// If the completion declines to reply, the result is empty and the reply is
// not recorded.
func (r *Relay) Converse(ctx context.Context, turn Turn) (string, error) {
	line := Line{Name: turn.Name, Content: turn.Content, Time: turn.Time}
	lines := []Line{line}
	if !turn.Private {
		if err := r.transcript.Append(ctx, turn.User, line); err != nil {
			return "", fmt.Errorf("couldn't record message: %w", err)
		}
		var err error
		lines, err = r.transcript.Lines(ctx, turn.User)
		if err != nil {
			return "", fmt.Errorf("couldn't get transcript: %w", err)
		}
	}
	if r.history > 0 && len(lines) > r.history {
		lines = lines[len(lines)-r.history:]
	}
	reply, err := r.completer.Complete(ctx, Prompt(r.preamble, r.name, lines))
	if err != nil {
		return "", fmt.Errorf("couldn't get completion: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" || IsSkip(reply) {
		return "", nil
	}
	if !turn.Private {
		l := Line{Name: r.name, Content: reply, Time: r.now()}
		if err := r.transcript.Append(ctx, turn.User, l); err != nil {
			return "", fmt.Errorf("couldn't record reply: %w", err)
		}
	}
	return reply, nil
}

// Hear records a message without replying to it.
// Private turns are not recorded.
func (r *Relay) Hear(ctx context.Context, turn Turn) error {
	if turn.Private {
		return nil
	}
	line := Line{Name: turn.Name, Content: turn.Content, Time: turn.Time}
	if err := r.transcript.Append(ctx, turn.User, line); err != nil {
		return fmt.Errorf("couldn't record message: %w", err)
	}
	return nil
}

// Forget deletes a user's transcript.
func (r *Relay) Forget(ctx context.Context, user string) error {
	return r.transcript.Forget(ctx, user)
}
