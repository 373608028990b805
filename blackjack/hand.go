package blackjack

import (
	"slices"
	"strconv"
)

// Hand is one sequence of cards with its own bet.
type Hand struct {
	Cards []Card
	// Bet is the stake on the hand. It has already been withdrawn.
	Bet int64
	// Standing means the hand takes no more actions.
	Standing bool
	// Blackjack means the hand was a two-card 21 on the deal.
	// It is never reevaluated after more cards are drawn.
	Blackjack bool
	// Acted means the player has made a decision on the hand.
	Acted bool
}

// Total returns the hand's total along with whether it is soft, i.e. still
// counts an ace as 11.
//
// Aces count 11 until the total exceeds 21, at which point they are demoted
// to 1 one at a time until the total fits or no aces remain. Since totals
// only grow as cards are drawn, computing demotion from scratch gives the
// same result as demoting as each card arrives.
func (h *Hand) Total() (total int, soft bool) {
	aces := 0
	for _, c := range h.Cards {
		total += c.Value()
		if c.Rank == Ace {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total, aces > 0
}

// Bust reports whether the hand's total exceeds 21.
func (h *Hand) Bust() bool {
	t, _ := h.Total()
	return t > 21
}

// Splittable reports whether the hand is two cards of equal value.
// Aces compare at 11 regardless of demotion.
func (h *Hand) Splittable() bool {
	return len(h.Cards) == 2 && h.Cards[0].Value() == h.Cards[1].Value()
}

// Show formats the hand's total. Soft totals also show the low total,
// e.g. "17 (7)".
func (h *Hand) Show() string {
	t, soft := h.Total()
	s := strconv.Itoa(t)
	if soft {
		s += " (" + strconv.Itoa(t-10) + ")"
	}
	return s
}

func (h Hand) clone() Hand {
	h.Cards = slices.Clone(h.Cards)
	return h
}

// Player is a participant in a round.
type Player struct {
	// ID is the player's user ID.
	ID string
	// Name is the player's display name.
	Name string
	// Hands is the player's hands. Index 0 is the original; splits append.
	Hands []Hand
	// Current is the index of the hand the player is acting on.
	Current int
}

// Done reports whether all the player's hands are standing.
func (p *Player) Done() bool {
	for i := range p.Hands {
		if !p.Hands[i].Standing {
			return false
		}
	}
	return true
}

// advance moves the current hand past standing hands.
func (p *Player) advance() {
	for p.Current < len(p.Hands)-1 && p.Hands[p.Current].Standing {
		p.Current++
	}
}

func (p *Player) clone() Player {
	r := *p
	r.Hands = make([]Hand, len(p.Hands))
	for i, h := range p.Hands {
		r.Hands[i] = h.clone()
	}
	return r
}
