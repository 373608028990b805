package command

import (
	"log/slog"
	"time"

	"github.com/zephyrtronium/casino/blackjack"
	"github.com/zephyrtronium/casino/ledger"
	"github.com/zephyrtronium/casino/metrics"
	"github.com/zephyrtronium/casino/payday"
	"github.com/zephyrtronium/casino/privacy"
	"github.com/zephyrtronium/casino/relay"
	"github.com/zephyrtronium/casino/settings"
	"github.com/zephyrtronium/casino/syncmap"
)

// Robot is the bot state as is visible to commands.
type Robot struct {
	Log *slog.Logger
	// Owner is the user ID of the bot's owner.
	Owner string
	// Prefix is the command prefix, for help text.
	Prefix string

	Ledger  *ledger.Ledger
	Payday  *payday.Register
	Economy *settings.Economies

	Blackjack *settings.File[settings.Blackjack]
	// Tables is the blackjack tables by channel ID.
	Tables *syncmap.Map[string, *blackjack.Table]
	// Shoe is the card source for new tables. Nil means random cards.
	Shoe blackjack.Shoe
	// Pause is the delay between rounds. Zero means the table default.
	Pause time.Duration
	// Hands renders hand images. May be nil.
	Hands HandRenderer

	// Relay is the chat relay. May be nil to disable chat.
	Relay   *relay.Relay
	Privacy *privacy.List

	Metrics *metrics.Metrics

	// Clock is the time source. Nil means time.Now.
	Clock func() time.Time
}

func (robo *Robot) now() time.Time {
	if robo.Clock != nil {
		return robo.Clock()
	}
	return time.Now()
}

// IsOwner reports whether a user is the bot owner.
func (robo *Robot) IsOwner(user string) bool {
	return robo.Owner != "" && user == robo.Owner
}
