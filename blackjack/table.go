// Package blackjack implements a blackjack table driven by chat commands.
//
// A table runs rounds continuously once started: a betting window, the deal,
// player turns until every hand stands or time runs out, the dealer's play,
// and settlement against a bank. Commands act on the table immediately
// while the round loop waits on its timers.
package blackjack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zephyrtronium/casino/ledger"
)

// State is the phase of a table.
type State int

const (
	Idle State = iota
	Betting
	Dealing
	PlayerTurns
	DealerResolution
	Settlement
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Betting:
		return "betting"
	case Dealing:
		return "dealing"
	case PlayerTurns:
		return "player turns"
	case DealerResolution:
		return "dealer resolution"
	case Settlement:
		return "settlement"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MaxBet is the largest bet any table accepts, whatever its rules.
// Every payout on a bet this size fits in an int64, even after doubling.
const MaxBet int64 = math.MaxInt64 / 4

var (
	// ErrInProgress is returned when starting a table that is already running.
	ErrInProgress = errors.New("a round is already in progress")
	// ErrNotRunning is returned when stopping a table that is idle.
	ErrNotRunning = errors.New("no round is running")
	// ErrInvalidBet is returned for bets outside the table limits or beyond
	// what the player can pay.
	ErrInvalidBet = errors.New("invalid bet")
	// ErrInvalidAction is returned for actions not allowed in the current
	// state of the round or hand.
	ErrInvalidAction = errors.New("invalid action")

	ErrWrongPhase       = fmt.Errorf("%w: not allowed right now", ErrInvalidAction)
	ErrNotPlaying       = fmt.Errorf("%w: not playing this round", ErrInvalidAction)
	ErrStanding         = fmt.Errorf("%w: hand is already standing", ErrInvalidAction)
	ErrNotFirstDecision = fmt.Errorf("%w: only allowed as the first decision on a hand", ErrInvalidAction)
	ErrCannotSplit      = fmt.Errorf("%w: hand is not a pair", ErrInvalidAction)
)

// Bank moves credits for a table.
type Bank interface {
	Withdraw(ctx context.Context, group, user string, amount int64) error
	Deposit(ctx context.Context, group, user string, amount int64) error
}

// Rules is the configuration of a round.
type Rules struct {
	// Min and Max are the bet limits. Max applies only if MaxEnabled.
	Min, Max   int64
	MaxEnabled bool
	// Betting is the length of the betting window.
	Betting time.Duration
	// Turns is the time players have to act after the deal.
	Turns time.Duration
}

// Announcer receives narration from the round loop.
// It is never called with the table's lock held.
type Announcer func(ctx context.Context, ev Event)

// Config is the configuration of a table.
type Config struct {
	// Bank holds player funds. Required.
	Bank Bank
	// Rules returns the rules for each round. Required.
	Rules func() Rules
	// Announce receives the round loop's events. May be nil.
	Announce Announcer
	// Shoe is the source of cards. Defaults to RandomShoe.
	Shoe Shoe
	// Pause is the delay after settlement before the next betting window.
	// Defaults to three seconds.
	Pause time.Duration
	// Log is the table's logger. Defaults to slog.Default().
	Log *slog.Logger
}

// Table is a blackjack table in a single group.
// Its methods are safe to call concurrently.
type Table struct {
	group string
	cfg   Config

	mu sync.Mutex
	// state is the table's phase.
	state State
	// round identifies the current run of rounds. It is empty when idle.
	// Timers compare it to notice they have been superseded.
	round string
	rules Rules
	// players is the players in the order they bet.
	players []*Player
	dealer  Hand
	// cancel stops the round loop.
	cancel context.CancelFunc
	// wake tells the round loop that every hand is standing.
	// Each run of rounds has its own.
	wake chan struct{}
}

// NewTable creates an idle table.
func NewTable(group string, cfg Config) *Table {
	if cfg.Shoe == nil {
		cfg.Shoe = RandomShoe{}
	}
	if cfg.Pause == 0 {
		cfg.Pause = 3 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Table{
		group: group,
		cfg:   cfg,
	}
}

// Group returns the group the table belongs to.
func (t *Table) Group() string {
	return t.group
}

// State returns the table's current phase.
func (t *Table) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Start opens the table for betting and starts the round loop.
// The loop runs until Stop or until ctx is canceled.
func (t *Table) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Idle {
		return ErrInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	t.round = uuid.NewString()
	t.cancel = cancel
	t.wake = make(chan struct{}, 1)
	t.openLocked()
	go t.loop(ctx, t.round, t.wake)
	return nil
}

// Stop returns the table to idle. Bets in play are not refunded.
func (t *Table) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Idle {
		return ErrNotRunning
	}
	t.idleLocked()
	return nil
}

// idleLocked resets the table to idle.
func (t *Table) idleLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.state = Idle
	t.round = ""
	t.players = nil
	t.dealer = Hand{}
}

// openLocked begins a betting window.
func (t *Table) openLocked() {
	t.state = Betting
	t.rules = t.cfg.Rules()
	t.players = nil
	t.dealer = Hand{}
	// Drop any wakeup left over from the previous round.
	select {
	case <-t.wake:
	default:
	}
}

func (t *Table) findLocked(id string) *Player {
	for _, p := range t.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// BetResult describes an accepted bet.
type BetResult struct {
	// Amount is the player's bet.
	Amount int64
	// Previous is the player's bet before this one, or 0 if this is their
	// first bet of the round.
	Previous int64
	// Rules is the rules of the round.
	Rules Rules
}

// Bet places or changes a player's bet for the round.
// Changing a bet settles only the difference with the bank.
func (t *Table) Bet(ctx context.Context, id, name string, amount int64) (BetResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Betting {
		return BetResult{}, ErrWrongPhase
	}
	r := t.rules
	switch {
	case amount <= 0 || amount < r.Min:
		return BetResult{}, fmt.Errorf("%w: the minimum bet is %d", ErrInvalidBet, r.Min)
	case r.MaxEnabled && amount > r.Max:
		return BetResult{}, fmt.Errorf("%w: the maximum bet is %d", ErrInvalidBet, r.Max)
	case amount > MaxBet:
		return BetResult{}, fmt.Errorf("%w: the maximum bet is %d", ErrInvalidBet, MaxBet)
	}
	p := t.findLocked(id)
	var prev int64
	if p != nil {
		prev = p.Hands[0].Bet
	}
	switch {
	case amount > prev:
		if err := t.stakeLocked(ctx, id, amount-prev); err != nil {
			return BetResult{}, err
		}
	case amount < prev:
		if err := t.cfg.Bank.Deposit(ctx, t.group, id, prev-amount); err != nil {
			return BetResult{}, fmt.Errorf("couldn't refund bet difference: %w", err)
		}
	}
	if p == nil {
		p = &Player{ID: id, Name: name, Hands: []Hand{{}}}
		t.players = append(t.players, p)
	}
	p.Hands[0].Bet = amount
	return BetResult{Amount: amount, Previous: prev, Rules: r}, nil
}

// stakeLocked withdraws a stake from a player. Failures meaning the player
// cannot cover the stake are invalid bets; others pass through.
func (t *Table) stakeLocked(ctx context.Context, id string, amount int64) error {
	err := t.cfg.Bank.Withdraw(ctx, t.group, id, amount)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrNoAccount), errors.Is(err, ledger.ErrInsufficientBalance):
		return fmt.Errorf("%w: %w", ErrInvalidBet, err)
	default:
		return fmt.Errorf("couldn't withdraw stake: %w", err)
	}
}

// Play describes the result of a player action.
type Play struct {
	// Player is a snapshot of the player after the action.
	Player Player
	// Hand is the index of the hand acted upon.
	Hand int
}

// Acted returns the hand acted upon.
func (p *Play) Acted() *Hand {
	return &p.Player.Hands[p.Hand]
}

// actLocked finds the hand a player may act on.
func (t *Table) actLocked(id string) (*Player, *Hand, error) {
	if t.state != PlayerTurns {
		return nil, nil, ErrWrongPhase
	}
	p := t.findLocked(id)
	if p == nil {
		return nil, nil, ErrNotPlaying
	}
	h := &p.Hands[p.Current]
	if h.Standing {
		return nil, nil, ErrStanding
	}
	return p, h, nil
}

// doneLocked finishes an action on the player's current hand.
func (t *Table) doneLocked(p *Player) Play {
	k := p.Current
	p.advance()
	t.checkLocked()
	return Play{Player: p.clone(), Hand: k}
}

// checkLocked wakes the round loop if every hand is standing.
func (t *Table) checkLocked() {
	for _, p := range t.players {
		if !p.Done() {
			return
		}
	}
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Hit draws a card into the player's current hand. A hand that busts
// stands.
func (t *Table) Hit(ctx context.Context, id string) (Play, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, h, err := t.actLocked(id)
	if err != nil {
		return Play{}, err
	}
	h.Cards = append(h.Cards, t.cfg.Shoe.Draw())
	h.Acted = true
	if h.Bust() {
		h.Standing = true
	}
	return t.doneLocked(p), nil
}

// Stand stands on the player's current hand.
func (t *Table) Stand(ctx context.Context, id string) (Play, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, h, err := t.actLocked(id)
	if err != nil {
		return Play{}, err
	}
	h.Acted = true
	h.Standing = true
	return t.doneLocked(p), nil
}

// Double doubles the bet on the player's current hand, draws exactly one
// card, and stands. It is only allowed as the first decision on a hand.
func (t *Table) Double(ctx context.Context, id string) (Play, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, h, err := t.actLocked(id)
	if err != nil {
		return Play{}, err
	}
	if h.Acted {
		return Play{}, ErrNotFirstDecision
	}
	if err := t.stakeLocked(ctx, id, h.Bet); err != nil {
		return Play{}, err
	}
	h.Bet *= 2
	h.Cards = append(h.Cards, t.cfg.Shoe.Draw())
	h.Acted = true
	h.Standing = true
	return t.doneLocked(p), nil
}

// Split splits the player's current hand, which must be a pair, into two
// hands of one card each. The new hand's stake equal to the original bet is
// withdrawn immediately. The new hand is played after the player's other
// hands.
func (t *Table) Split(ctx context.Context, id string) (Play, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, h, err := t.actLocked(id)
	if err != nil {
		return Play{}, err
	}
	if !h.Splittable() {
		return Play{}, ErrCannotSplit
	}
	if err := t.stakeLocked(ctx, id, h.Bet); err != nil {
		return Play{}, err
	}
	n := Hand{Cards: []Card{h.Cards[1]}, Bet: h.Bet}
	h.Cards = []Card{h.Cards[0]}
	k := p.Current
	p.Hands = append(p.Hands, n)
	return Play{Player: p.clone(), Hand: k}, nil
}

// Players returns a snapshot of the players in the round.
func (t *Table) Players() []Player {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := make([]Player, len(t.players))
	for i, p := range t.players {
		r[i] = p.clone()
	}
	return r
}
