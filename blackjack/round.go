package blackjack

import (
	"context"
	"log/slog"
	"time"
)

// EventKind is the kind of an event from the round loop.
type EventKind int

const (
	// Opened means a betting window has opened.
	Opened EventKind = iota
	// NoBets means a betting window closed without bets and the table is
	// now idle.
	NoBets
	// Dealt means cards are dealt and players may act.
	// Only the dealer's first card should be shown.
	Dealt
	// Settled means the dealer has played and payouts are done.
	Settled
)

// Event is narration from the round loop.
type Event struct {
	Kind  EventKind
	Group string
	// Round identifies the run of rounds since the table started.
	Round string
	Rules Rules
	// Players is the players in the round.
	Players []Player
	// Dealer is the dealer's hand.
	Dealer Hand
	// Results is the settlement of each hand, for Settled events.
	Results []Result
}

// Outcome is the result of a hand against the dealer.
type Outcome int

const (
	Lose Outcome = iota
	Push
	Win
	// Natural is a winning blackjack.
	Natural
	Bust
)

func (o Outcome) String() string {
	switch o {
	case Lose:
		return "lose"
	case Push:
		return "push"
	case Win:
		return "win"
	case Natural:
		return "blackjack"
	case Bust:
		return "bust"
	}
	return "?"
}

// Result is the settlement of one hand.
type Result struct {
	Player  string
	Name    string
	Hand    int
	Outcome Outcome
	Bet     int64
	// Payout is the amount returned to the player, including the stake.
	Payout int64
	// Err is set if the payout could not be deposited.
	Err error
}

// Payout determines a hand's outcome against the dealer's hand and the
// amount returned to the player.
// A dealer blackjack beats every hand except a player blackjack, which
// pushes. Bets up to MaxBet cannot overflow.
func Payout(h *Hand, dealer *Hand) (Outcome, int64) {
	pt, _ := h.Total()
	dt, _ := dealer.Total()
	switch {
	case h.Blackjack && dealer.Blackjack:
		return Push, h.Bet
	case h.Blackjack:
		// Three to two, rounded down.
		return Natural, 2*h.Bet + h.Bet/2
	case pt > 21:
		return Bust, 0
	case dealer.Blackjack:
		return Lose, 0
	case dt > 21, pt > dt:
		return Win, 2 * h.Bet
	case pt == dt:
		return Push, h.Bet
	default:
		return Lose, 0
	}
}

// loop runs rounds until the table stops.
func (t *Table) loop(ctx context.Context, round string, wake <-chan struct{}) {
	for {
		ev, ok := t.opened(round)
		if !ok {
			return
		}
		t.announce(ctx, ev)
		if !sleep(ctx, ev.Rules.Betting) {
			return
		}
		ev, ok = t.deal(round)
		if !ok {
			return
		}
		t.announce(ctx, ev)
		if ev.Kind == NoBets {
			return
		}
		turns := time.NewTimer(ev.Rules.Turns)
		select {
		case <-ctx.Done():
			turns.Stop()
			return
		case <-wake:
		case <-turns.C:
		}
		turns.Stop()
		ev, ok = t.settle(ctx, round)
		if !ok {
			return
		}
		t.announce(ctx, ev)
		if !sleep(ctx, t.cfg.Pause) {
			return
		}
		if !t.reopen(round) {
			return
		}
	}
}

func (t *Table) announce(ctx context.Context, ev Event) {
	if t.cfg.Announce != nil {
		t.cfg.Announce(ctx, ev)
	}
}

// sleep waits for a duration. It returns false if ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	tm := time.NewTimer(d)
	defer tm.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-tm.C:
		return true
	}
}

// opened describes the open betting window.
func (t *Table) opened(round string) (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.round != round || t.state != Betting {
		return Event{}, false
	}
	return Event{Kind: Opened, Group: t.group, Round: round, Rules: t.rules}, true
}

// reopen starts the next betting window.
func (t *Table) reopen(round string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.round != round {
		return false
	}
	t.openLocked()
	return true
}

// deal closes betting and deals the round. If nobody bet, the table goes
// idle instead.
func (t *Table) deal(round string) (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.round != round || t.state != Betting {
		return Event{}, false
	}
	if len(t.players) == 0 {
		t.idleLocked()
		return Event{Kind: NoBets, Group: t.group, Round: round}, true
	}
	t.state = Dealing
	for _, p := range t.players {
		h := &p.Hands[0]
		h.Cards = []Card{t.cfg.Shoe.Draw(), t.cfg.Shoe.Draw()}
		if total, _ := h.Total(); total == 21 {
			h.Blackjack = true
			h.Standing = true
		}
	}
	t.dealer = Hand{Cards: []Card{t.cfg.Shoe.Draw(), t.cfg.Shoe.Draw()}}
	t.state = PlayerTurns
	t.checkLocked()
	return t.eventLocked(Dealt), true
}

// settle plays the dealer's hand and pays out.
func (t *Table) settle(ctx context.Context, round string) (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.round != round || t.state != PlayerTurns {
		return Event{}, false
	}
	// Anyone who hasn't finished is out of time.
	for _, p := range t.players {
		for i := range p.Hands {
			p.Hands[i].Standing = true
		}
		p.Current = len(p.Hands) - 1
	}
	t.state = DealerResolution
	d := &t.dealer
	if total, _ := d.Total(); total == 21 && len(d.Cards) == 2 {
		d.Blackjack = true
	}
	for {
		total, _ := d.Total()
		if total >= 17 {
			break
		}
		d.Cards = append(d.Cards, t.cfg.Shoe.Draw())
	}
	d.Standing = true
	t.state = Settlement
	// Payouts must not be lost to shutdown once the round has resolved.
	ctx = context.WithoutCancel(ctx)
	ev := t.eventLocked(Settled)
	for _, p := range t.players {
		for i := range p.Hands {
			h := &p.Hands[i]
			o, amt := Payout(h, d)
			r := Result{Player: p.ID, Name: p.Name, Hand: i, Outcome: o, Bet: h.Bet, Payout: amt}
			if amt > 0 {
				if err := t.cfg.Bank.Deposit(ctx, t.group, p.ID, amt); err != nil {
					t.cfg.Log.ErrorContext(ctx, "payout failed",
						slog.String("group", t.group),
						slog.String("user", p.ID),
						slog.Int64("amount", amt),
						slog.Any("err", err),
					)
					r.Err = err
				}
			}
			ev.Results = append(ev.Results, r)
		}
	}
	return ev, true
}

// eventLocked creates an event with a snapshot of the round.
func (t *Table) eventLocked(kind EventKind) Event {
	ev := Event{
		Kind:    kind,
		Group:   t.group,
		Round:   t.round,
		Rules:   t.rules,
		Players: make([]Player, len(t.players)),
		Dealer:  t.dealer.clone(),
	}
	for i, p := range t.players {
		ev.Players[i] = p.clone()
	}
	return ev
}
