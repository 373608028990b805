package main

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/zephyrtronium/casino/channel"
	"github.com/zephyrtronium/casino/command"
	"github.com/zephyrtronium/casino/message"
)

// onMessage handles a message from chat.
func (b *Bot) onMessage(ctx context.Context, ch *channel.Channel, m *message.Received) {
	b.metrics.MessageCount.Observe(1)
	log := slog.With(slog.String("trace", m.ID), slog.String("in", ch.Group))
	text, ok := parseCommand(b.prefix, m.Text)
	if !ok {
		// Relay what people say to one another, with mentions readable.
		u := *m
		u.Text = plainMentions(m.Text, m.Mentions)
		command.Chat(ctx, b.robo, &command.Invocation{Channel: ch, Message: &u})
		return
	}
	c, args := findCommand(commands, text)
	if c == nil {
		log.DebugContext(ctx, "no such command", slog.String("text", text))
		return
	}
	if !b.allowed(c.level, m) {
		log.InfoContext(ctx, "command denied",
			slog.String("kind", c.level.String()),
			slog.String("name", c.name),
			slog.String("user", m.Sender),
		)
		return
	}
	log.InfoContext(ctx, "command",
		slog.String("kind", c.level.String()),
		slog.String("name", c.name),
		slog.Any("args", args),
	)
	b.metrics.CommandCount.Observe(1, c.name)
	c.fn(ctx, b.robo, &command.Invocation{Channel: ch, Message: m, Args: args})
}

// allowed reports whether the sender of m may use commands at a level.
func (b *Bot) allowed(l level, m *message.Received) bool {
	switch l {
	case regular:
		return true
	case admin:
		return m.IsAdmin || b.robo.IsOwner(m.Sender)
	default:
		return b.robo.IsOwner(m.Sender)
	}
}

// parseCommand returns the text of a command invocation following prefix.
func parseCommand(prefix, text string) (string, bool) {
	text = strings.TrimSpace(text)
	if prefix == "" {
		return "", false
	}
	rest, ok := strings.CutPrefix(text, prefix)
	if !ok || rest == "" {
		return "", false
	}
	// A prefix followed by space or punctuation is not an invocation,
	// e.g. "! really" or "!!".
	r := []rune(rest)[0]
	if !unicode.IsLetter(r) {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

var mentionRE = regexp.MustCompile(`<@!?(\d+)>`)

// plainMentions replaces user mentions with @names.
func plainMentions(text string, names map[string]string) string {
	if len(names) == 0 {
		return text
	}
	return mentionRE.ReplaceAllStringFunc(text, func(s string) string {
		id := mentionRE.FindStringSubmatch(s)[1]
		if n := names[id]; n != "" {
			return "@" + n
		}
		return s
	})
}

// level is a privilege level for commands.
type level int

const (
	regular level = iota
	// admin is for users who can manage the server.
	admin
	// owner is for the bot owner.
	owner
)

func (l level) String() string {
	switch l {
	case regular:
		return "regular"
	case admin:
		return "admin"
	default:
		return "owner"
	}
}

type botCommand struct {
	parse *regexp.Regexp
	fn    command.Func
	name  string
	level level
}

func findCommand(cmds []botCommand, text string) (*botCommand, map[string]string) {
	for i := range cmds {
		c := &cmds[i]
		u := c.parse.FindStringSubmatch(text)
		switch len(u) {
		case 0:
			continue
		case 1:
			return c, nil
		default:
			m := make(map[string]string, len(u)-1)
			s := c.parse.SubexpNames()
			for k, v := range u[1:] {
				m[s[k+1]] = v
			}
			return c, m
		}
	}
	return nil, nil
}

// user matches a mention, capturing the user ID.
const user = `<@!?(?<user>\d+)>`

var commands = []botCommand{
	{
		parse: regexp.MustCompile(`(?i)^(?:bank\s+)?register$`),
		fn:    command.Register,
		name:  "register",
	},
	{
		parse: regexp.MustCompile(`(?i)^(?:bank\s+)?balance(?:\s+` + user + `)?$`),
		fn:    command.Balance,
		name:  "balance",
	},
	{
		parse: regexp.MustCompile(`(?i)^(?:bank\s+)?transfer\s+` + user + `\s+(?<amount>\S+)$`),
		fn:    command.Transfer,
		name:  "transfer",
	},
	{
		parse: regexp.MustCompile(`(?i)^bank\s+set\s+` + user + `\s+(?<amount>\S+)$`),
		fn:    command.SetBalance,
		name:  "bank-set",
		level: owner,
	},
	{
		parse: regexp.MustCompile(`(?i)^bank\s+wipe$`),
		fn:    command.Wipe,
		name:  "bank-wipe",
		level: owner,
	},
	{
		parse: regexp.MustCompile(`(?i)^payday$`),
		fn:    command.Payday,
		name:  "payday",
	},
	{
		parse: regexp.MustCompile(`(?i)^leaderboard(?:\s+(?<scope>server|global))?(?:\s+(?<top>\d+))?$`),
		fn:    command.Leaderboard,
		name:  "leaderboard",
	},
	{
		parse: regexp.MustCompile(`(?i)^economyset(?:\s+(?<key>\S+)(?:\s+(?<value>\S+))?)?$`),
		fn:    command.EconomySet,
		name:  "economyset",
		level: owner,
	},
	{
		parse: regexp.MustCompile(`(?i)^(?:blackjack|bj)\s+start$`),
		fn:    command.BlackjackStart,
		name:  "blackjack-start",
	},
	{
		parse: regexp.MustCompile(`(?i)^(?:blackjack|bj)\s+stop$`),
		fn:    command.BlackjackStop,
		name:  "blackjack-stop",
		level: admin,
	},
	{
		parse: regexp.MustCompile(`(?i)^(?:(?:blackjack|bj)\s+)?bet\s+(?<amount>\S+)$`),
		fn:    command.Bet,
		name:  "bet",
	},
	{
		parse: regexp.MustCompile(`(?i)^(?:(?:blackjack|bj)\s+)?hit$`),
		fn:    command.Hit,
		name:  "hit",
	},
	{
		parse: regexp.MustCompile(`(?i)^(?:(?:blackjack|bj)\s+)?(?:stand|stay)$`),
		fn:    command.Stand,
		name:  "stand",
	},
	{
		parse: regexp.MustCompile(`(?i)^(?:(?:blackjack|bj)\s+)?double$`),
		fn:    command.Double,
		name:  "double",
	},
	{
		parse: regexp.MustCompile(`(?i)^(?:(?:blackjack|bj)\s+)?split$`),
		fn:    command.Split,
		name:  "split",
	},
	{
		parse: regexp.MustCompile(`(?i)^blackjackset(?:\s+(?<key>\S+)(?:\s+(?<value>\S+))?)?$`),
		fn:    command.BlackjackSet,
		name:  "blackjackset",
		level: admin,
	},
	{
		parse: regexp.MustCompile(`(?i)^relay\s+private$`),
		fn:    command.Private,
		name:  "private",
	},
	{
		parse: regexp.MustCompile(`(?i)^relay\s+unprivate$`),
		fn:    command.Unprivate,
		name:  "unprivate",
	},
}
