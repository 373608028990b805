package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"gitlab.com/zephyrtronium/pick"

	"github.com/zephyrtronium/casino/blackjack"
	"github.com/zephyrtronium/casino/channel"
	"github.com/zephyrtronium/casino/ledger"
	"github.com/zephyrtronium/casino/message"
	"github.com/zephyrtronium/casino/settings"
)

// table returns the blackjack table for the invocation's channel, creating
// it if needed.
func (robo *Robot) table(call *Invocation) *blackjack.Table {
	ch := call.Channel
	t, _ := robo.Tables.LoadOrStore(ch.ID, func() *blackjack.Table {
		return blackjack.NewTable(ch.Group, blackjack.Config{
			Bank:     robo.Ledger,
			Rules:    robo.rules,
			Announce: robo.announcer(ch),
			Shoe:     robo.Shoe,
			Pause:    robo.Pause,
			Log:      robo.Log.With(slog.String("channel", ch.ID)),
		})
	})
	return t
}

// act runs an action on the channel's table. A channel that has never had a
// game is treated the same as one whose table is idle.
func (robo *Robot) act(ctx context.Context, call *Invocation, action func(*blackjack.Table, context.Context, string) (blackjack.Play, error)) (blackjack.Play, error) {
	t, ok := robo.Tables.Load(call.Channel.ID)
	if !ok {
		return blackjack.Play{}, blackjack.ErrWrongPhase
	}
	return action(t, ctx, call.Message.Sender)
}

func (robo *Robot) noGame(ctx context.Context, call *Invocation) {
	call.reply(ctx, message.Format("", "", "There is currently no game running, type `%sblackjack start` to begin one.", robo.Prefix))
}

func (robo *Robot) rules() blackjack.Rules {
	s := robo.Blackjack.Get()
	return blackjack.Rules{
		Min:        s.Min,
		Max:        s.Max,
		MaxEnabled: s.MaxEnabled,
		Betting:    time.Duration(s.PreGameTime) * time.Second,
		Turns:      time.Duration(s.GameTime) * time.Second,
	}
}

// handImage renders a hand if images are enabled.
func (robo *Robot) handImage(ctx context.Context, name string, cards []blackjack.Card) string {
	if robo.Hands == nil || !robo.Blackjack.Get().ImagesEnabled {
		return ""
	}
	u, err := robo.Hands.Render(ctx, name, cards)
	if err != nil {
		robo.Log.WarnContext(ctx, "couldn't render hand", slog.Any("err", err))
		return ""
	}
	return u
}

// handEmbed describes a hand.
func (robo *Robot) handEmbed(ctx context.Context, name, icon, desc string, color int, cards []blackjack.Card) *message.Embed {
	return &message.Embed{
		Description: desc,
		Author:      name,
		AuthorIcon:  icon,
		Color:       color,
		Fields:      []message.Field{{Name: "Hand", Value: cardsText(cards), Inline: true}},
		Image:       robo.handImage(ctx, name, cards),
	}
}

func cardsText(cards []blackjack.Card) string {
	s := make([]string, len(cards))
	for i, c := range cards {
		s[i] = c.String()
	}
	return strings.Join(s, " ")
}

// dealerName labels the dealer's hands.
const dealerName = "The Dealer"

var openings = pick.New([]pick.Case[string]{
	{E: ":moneybag::hearts: `Blackjack started!` :diamonds::moneybag:\n:moneybag: `Place your bets now to join the round!` :moneybag:", W: 10},
	{E: ":spades: `The table is open!` :clubs:\n:moneybag: `Place your bets now to join the round!` :moneybag:", W: 3},
	{E: ":game_die: `New round!` :game_die:\n:moneybag: `Place your bets now to join the round!` :moneybag:", W: 2},
})

// announcer narrates a table's rounds into a channel.
func (robo *Robot) announcer(ch *channel.Channel) blackjack.Announcer {
	return func(ctx context.Context, ev blackjack.Event) {
		send := func(m message.Sent) {
			m.To = ch.ID
			ch.Message(ctx, m)
		}
		switch ev.Kind {
		case blackjack.Opened:
			limits := fmt.Sprintf("Bets from %s credits", credits(ev.Rules.Min))
			if ev.Rules.MaxEnabled {
				limits = fmt.Sprintf("Bets from %s to %s credits", credits(ev.Rules.Min), credits(ev.Rules.Max))
			}
			send(message.Sent{Text: fmt.Sprintf("%s\n%s for the next %s.", openings.Pick(rand.Uint32()), limits, ev.Rules.Betting)})
		case blackjack.NoBets:
			robo.Metrics.ActiveTables.Observe(-1)
			send(message.Format("", "", "No bets made, aborting game!"))
		case blackjack.Dealt:
			for _, p := range ev.Players {
				h := &p.Hands[0]
				var desc string
				if h.Blackjack {
					desc = fmt.Sprintf("%s has a **blackjack**!", p.Name)
				} else {
					desc = fmt.Sprintf("%s has drawn a %s and a %s, totaling to %s!", p.Name, h.Cards[0], h.Cards[1], h.Show())
				}
				send(message.Sent{Embed: robo.handEmbed(ctx, p.Name, "", desc, message.Gold, h.Cards)})
			}
			up := ev.Dealer.Cards[:1]
			desc := fmt.Sprintf("**The dealer has drawn a %s!**", up[0])
			send(message.Sent{Embed: robo.handEmbed(ctx, dealerName, "", desc, message.Green, up)})
		case blackjack.Settled:
			robo.settled(ctx, send, ev)
		}
	}
}

// settled narrates the end of a round.
func (robo *Robot) settled(ctx context.Context, send func(message.Sent), ev blackjack.Event) {
	d := &ev.Dealer
	dt, _ := d.Total()
	var desc string
	switch {
	case d.Blackjack:
		desc = "**The dealer has a blackjack!**"
	case dt > 21:
		desc = fmt.Sprintf("**The dealer has busted with %d!**", dt)
	default:
		desc = fmt.Sprintf("**The dealer stands at %d!**", dt)
	}
	send(message.Sent{Embed: robo.handEmbed(ctx, dealerName, "", desc, message.Green, d.Cards)})

	players := make(map[string]*blackjack.Player, len(ev.Players))
	for i := range ev.Players {
		players[ev.Players[i].ID] = &ev.Players[i]
	}
	res := &message.Embed{Title: "Results", Color: message.Gold}
	var paid int64
	for _, r := range ev.Results {
		p := players[r.Player]
		name := r.Name
		if p != nil && len(p.Hands) > 1 {
			name = fmt.Sprintf("%s (hand %d)", r.Name, r.Hand+1)
		}
		var total int
		if p != nil {
			total, _ = p.Hands[r.Hand].Total()
		}
		res.Fields = append(res.Fields, message.Field{Name: name, Value: resultText(r, total, dt > 21)})
		if r.Err == nil {
			paid += r.Payout
		}
	}
	var bal strings.Builder
	for _, p := range ev.Players {
		n, err := robo.Ledger.Balance(ev.Group, p.ID)
		if err != nil {
			continue
		}
		fmt.Fprintf(&bal, "%s: %s\n", p.Name, credits(n))
	}
	if bal.Len() > 0 {
		res.Fields = append(res.Fields, message.Field{Name: "Current Balances", Value: bal.String()})
	}
	send(message.Sent{Embed: res})
	robo.Metrics.RoundCount.Observe(1)
	robo.Metrics.PaidOut.Observe(float64(paid))
}

func resultText(r blackjack.Result, total int, dealerBust bool) string {
	var s string
	switch r.Outcome {
	case blackjack.Natural:
		s = fmt.Sprintf("Beats the dealer with a blackjack and wins **%s**!", credits(r.Payout-r.Bet))
	case blackjack.Win:
		if dealerBust {
			s = fmt.Sprintf("Doesn't bust with a score of %d and wins **%s**!", total, credits(r.Payout-r.Bet))
		} else {
			s = fmt.Sprintf("Beats the dealer with a score of %d and wins **%s**!", total, credits(r.Payout-r.Bet))
		}
	case blackjack.Push:
		s = "Ties the dealer and pushes!"
	case blackjack.Bust:
		s = "Busted and wins nothing."
	default:
		s = fmt.Sprintf("Loses with a score of %d.", total)
	}
	if r.Err != nil {
		s += " Something went wrong paying out, sorry!"
	}
	return s
}

// BlackjackStart opens the channel's table for betting.
func BlackjackStart(ctx context.Context, robo *Robot, call *Invocation) {
	t := robo.table(call)
	if err := t.Start(ctx); err != nil {
		call.reply(ctx, message.Format("", "", "A blackjack game is already in progress!"))
		return
	}
	robo.Metrics.ActiveTables.Observe(1)
	robo.Log.InfoContext(ctx, "blackjack started",
		slog.String("group", call.Channel.Group),
		slog.String("channel", call.Channel.ID),
		slog.String("by", call.Message.Sender),
	)
}

// BlackjackStop stops the channel's table without refunds. Admin only.
func BlackjackStop(ctx context.Context, robo *Robot, call *Invocation) {
	t, ok := robo.Tables.Load(call.Channel.ID)
	if !ok || t.Stop() != nil {
		call.reply(ctx, message.Format("", "", "There is no game currently running."))
		return
	}
	robo.Metrics.ActiveTables.Observe(-1)
	robo.Log.InfoContext(ctx, "blackjack stopped",
		slog.String("group", call.Channel.Group),
		slog.String("channel", call.Channel.ID),
		slog.String("by", call.Message.Sender),
	)
	call.say(ctx, message.Format("", "", "**Blackjack has been stopped**"))
}

// Bet places or changes the invoker's bet on the round in betting.
//   - amount: Number of credits.
func Bet(ctx context.Context, robo *Robot, call *Invocation) {
	m := call.Message
	n, ok := amount(call.Args["amount"])
	if !ok {
		call.reply(ctx, message.Format("", "", "%s, bets are whole numbers of credits.", m.Name))
		return
	}
	t, ok := robo.Tables.Load(call.Channel.ID)
	if !ok {
		robo.noGame(ctx, call)
		return
	}
	res, err := t.Bet(ctx, m.Sender, m.Name, n)
	switch {
	case err == nil:
		if d := res.Amount - res.Previous; d > 0 {
			robo.Metrics.Wagered.Observe(float64(d))
		}
		bal, _ := robo.Ledger.Balance(call.Channel.Group, m.Sender)
		e := &message.Embed{
			Author:     m.Name,
			AuthorIcon: m.Avatar,
			Color:      message.Gold,
			Fields: []message.Field{
				{Name: "Bet Placed", Value: credits(res.Amount), Inline: true},
				{Name: "Current Balance", Value: credits(bal), Inline: true},
			},
		}
		call.reply(ctx, message.Sent{Embed: e})
	case errors.Is(err, blackjack.ErrWrongPhase):
		if t.State() == blackjack.Idle {
			robo.noGame(ctx, call)
			return
		}
		call.reply(ctx, message.Format("", "", "There is currently a game in progress, wait for the next game."))
	case errors.Is(err, ledger.ErrNoAccount), errors.Is(err, ledger.ErrInsufficientBalance):
		call.reply(ctx, message.Format("", "", "%s, you need an account with enough funds to play blackjack.", m.Name))
	case errors.Is(err, blackjack.ErrInvalidBet):
		r := robo.rules()
		hi := blackjack.MaxBet
		if r.MaxEnabled {
			hi = min(hi, r.Max)
		}
		if r.MaxEnabled || n > hi {
			call.reply(ctx, message.Format("", "", "%s, bet must be between %s and %s.", m.Name, credits(r.Min), credits(hi)))
			return
		}
		call.reply(ctx, message.Format("", "", "%s, bet must be at least %s.", m.Name, credits(r.Min)))
	default:
		robo.Log.ErrorContext(ctx, "bet failed", slog.Any("err", err), slog.String("user", m.Sender))
		call.reply(ctx, message.Format("", "", "Something went wrong placing your bet. Try again. Sorry!"))
	}
}

// playFailed explains why an action on a hand was refused.
func (robo *Robot) playFailed(ctx context.Context, call *Invocation, verb string, err error) {
	name := call.Message.Name
	switch {
	case errors.Is(err, blackjack.ErrWrongPhase):
		call.reply(ctx, message.Format("", "", "%s, you cannot %s right now.", name, verb))
	case errors.Is(err, blackjack.ErrNotPlaying):
		call.reply(ctx, message.Format("", "", "%s, you aren't playing this round.", name))
	case errors.Is(err, blackjack.ErrStanding):
		call.reply(ctx, message.Format("", "", "%s, you are standing and cannot %s.", name, verb))
	case errors.Is(err, blackjack.ErrNotFirstDecision):
		call.reply(ctx, message.Format("", "", "%s, you can only %s as your first move on a hand.", name, verb))
	case errors.Is(err, blackjack.ErrCannotSplit):
		call.reply(ctx, message.Format("", "", "%s, you may only split with two cards of the same value!", name))
	case errors.Is(err, ledger.ErrNoAccount), errors.Is(err, ledger.ErrInsufficientBalance):
		call.reply(ctx, message.Format("", "", "%s, you do not have enough money to %s!", name, verb))
	default:
		robo.Log.ErrorContext(ctx, "blackjack action failed", slog.String("action", verb), slog.Any("err", err), slog.String("user", call.Message.Sender))
		call.reply(ctx, message.Format("", "", "Something went wrong. Try again. Sorry!"))
	}
}

// played shows the hand an action changed.
func (robo *Robot) played(ctx context.Context, call *Invocation, play *blackjack.Play, desc string) {
	if play.Player.Current != play.Hand {
		desc += " Moving on to next split hand!"
	}
	h := play.Acted()
	call.reply(ctx, message.Sent{Embed: robo.handEmbed(ctx, call.Message.Name, call.Message.Avatar, desc, message.Gold, h.Cards)})
}

// Hit draws a card into the invoker's current hand.
func Hit(ctx context.Context, robo *Robot, call *Invocation) {
	play, err := robo.act(ctx, call, (*blackjack.Table).Hit)
	if err != nil {
		robo.playFailed(ctx, call, "hit", err)
		return
	}
	name := call.Message.Name
	h := play.Acted()
	var desc string
	if h.Bust() {
		desc = fmt.Sprintf("%s has **busted**!", name)
	} else {
		desc = fmt.Sprintf("%s has hit and drawn a %s, totaling their hand to %s.", name, h.Cards[len(h.Cards)-1], h.Show())
	}
	robo.played(ctx, call, &play, desc)
}

// Stand stands on the invoker's current hand.
func Stand(ctx context.Context, robo *Robot, call *Invocation) {
	play, err := robo.act(ctx, call, (*blackjack.Table).Stand)
	if err != nil {
		robo.playFailed(ctx, call, "stand", err)
		return
	}
	t, _ := play.Acted().Total()
	robo.played(ctx, call, &play, fmt.Sprintf("%s has stood with a hand totaling to %d.", call.Message.Name, t))
}

// Double doubles the bet on the invoker's current hand and draws one last
// card.
func Double(ctx context.Context, robo *Robot, call *Invocation) {
	play, err := robo.act(ctx, call, (*blackjack.Table).Double)
	if err != nil {
		robo.playFailed(ctx, call, "double down", err)
		return
	}
	name := call.Message.Name
	h := play.Acted()
	robo.Metrics.Wagered.Observe(float64(h.Bet / 2))
	var desc string
	if h.Bust() {
		desc = fmt.Sprintf("%s has doubled down to %s and **busted**!", name, credits(h.Bet))
	} else {
		desc = fmt.Sprintf("%s has doubled down to %s and drawn a %s, totaling their hand to %s.", name, credits(h.Bet), h.Cards[len(h.Cards)-1], h.Show())
	}
	robo.played(ctx, call, &play, desc)
}

// Split splits the invoker's current hand if it is a pair.
func Split(ctx context.Context, robo *Robot, call *Invocation) {
	play, err := robo.act(ctx, call, (*blackjack.Table).Split)
	if err != nil {
		robo.playFailed(ctx, call, "split", err)
		return
	}
	h := play.Acted()
	robo.Metrics.Wagered.Observe(float64(h.Bet))
	desc := fmt.Sprintf("%s has split their %ss! Play through your first hand and stand to begin your next!", call.Message.Name, h.Cards[0].Rank)
	robo.played(ctx, call, &play, desc)
}

// BlackjackSet changes the blackjack settings. Admin only.
// Changes apply from the next round.
//   - key: "min", "max", "maxtoggle", "pretime", "time", "imagestoggle", or
//     empty to show the settings.
//   - value: New value for min, max, pretime, and time.
func BlackjackSet(ctx context.Context, robo *Robot, call *Invocation) {
	key := strings.ToLower(call.Args["key"])
	var n int64
	switch key {
	case "":
		s := robo.Blackjack.Get()
		call.reply(ctx, message.Format("", "", "```\nBLACKJACK_MIN: %d\nBLACKJACK_MAX: %d\nBLACKJACK_MAX_ENABLED: %t\nBLACKJACK_GAME_TIME: %d\nBLACKJACK_PRE_GAME_TIME: %d\nBLACKJACK_IMAGES_ENABLED: %t\n```",
			s.Min, s.Max, s.MaxEnabled, s.GameTime, s.PreGameTime, s.ImagesEnabled))
		return
	case "min", "max", "pretime", "time":
		var ok bool
		n, ok = amount(call.Args["value"])
		if !ok || n < 1 {
			call.reply(ctx, message.Format("", "", "The value must be a positive whole number."))
			return
		}
	case "maxtoggle", "imagestoggle":
	default:
		call.reply(ctx, message.Format("", "", "I don't know the setting %q.", key))
		return
	}
	s, err := robo.Blackjack.Update(func(b *settings.Blackjack) {
		switch key {
		case "min":
			b.Min = n
		case "max":
			b.Max = n
		case "maxtoggle":
			b.MaxEnabled = !b.MaxEnabled
		case "pretime":
			b.PreGameTime = n
		case "time":
			b.GameTime = n
		case "imagestoggle":
			b.ImagesEnabled = !b.ImagesEnabled
		}
	})
	if err != nil {
		robo.Log.ErrorContext(ctx, "couldn't save blackjack settings", slog.Any("err", err))
		call.reply(ctx, message.Format("", "", "Something went wrong saving the settings. Nothing changed."))
		return
	}
	robo.Log.InfoContext(ctx, "blackjack settings changed", slog.String("key", key), slog.Int64("value", n), slog.String("by", call.Message.Sender))
	switch key {
	case "min":
		call.reply(ctx, message.Format("", "", "Minimum bet is now %s credits.", credits(s.Min)))
	case "max":
		call.reply(ctx, message.Format("", "", "Maximum bet is now %s credits.", credits(s.Max)))
	case "maxtoggle":
		call.reply(ctx, message.Format("", "", "Maximum bet is now %s.", enabled(s.MaxEnabled)))
	case "pretime":
		call.reply(ctx, message.Format("", "", "Blackjack pre-game time is now %d seconds.", s.PreGameTime))
	case "time":
		call.reply(ctx, message.Format("", "", "Blackjack maximum game time is now %d seconds.", s.GameTime))
	case "imagestoggle":
		call.reply(ctx, message.Format("", "", "Card images are now %s.", enabled(s.ImagesEnabled)))
	}
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
