package blackjack

import (
	"math/rand/v2"
	"strconv"
)

// Suit is a card suit.
type Suit uint8

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

func (s Suit) String() string {
	switch s {
	case Hearts:
		return "hearts"
	case Diamonds:
		return "diamonds"
	case Clubs:
		return "clubs"
	case Spades:
		return "spades"
	}
	return "?"
}

// Symbol returns the suit's symbol.
func (s Suit) Symbol() string {
	switch s {
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Spades:
		return "♠"
	}
	return "?"
}

// Rank is a card rank. Number cards have their own values as ranks.
type Rank uint8

const (
	Jack Rank = 11 + iota
	Queen
	King
	Ace
)

func (r Rank) String() string {
	switch {
	case r >= 2 && r <= 10:
		return strconv.Itoa(int(r))
	case r == Jack:
		return "J"
	case r == Queen:
		return "Q"
	case r == King:
		return "K"
	case r == Ace:
		return "A"
	}
	return "?"
}

// Card is a playing card.
type Card struct {
	Suit Suit
	Rank Rank
}

// Value is the card's value in a hand total, counting aces as 11.
func (c Card) Value() int {
	switch {
	case c.Rank == Ace:
		return 11
	case c.Rank >= Jack:
		return 10
	default:
		return int(c.Rank)
	}
}

func (c Card) String() string {
	return c.Rank.String() + c.Suit.Symbol()
}

// Shoe is a source of cards.
type Shoe interface {
	Draw() Card
}

// RandomShoe draws each card uniformly from a full deck, with replacement.
type RandomShoe struct{}

// Draw draws a card.
func (RandomShoe) Draw() Card {
	n := rand.N(52)
	return Card{Suit: Suit(n / 13), Rank: Rank(n%13 + 2)}
}
