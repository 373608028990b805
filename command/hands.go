package command

import (
	"context"
	"net/url"
	"os"
	"strings"

	"github.com/zephyrtronium/casino/blackjack"
)

// HandRenderer produces the URL of an image of a hand.
type HandRenderer interface {
	Render(ctx context.Context, player string, cards []blackjack.Card) (string, error)
}

// URLTemplate renders hands by expanding a URL template.
// ${cards} expands to comma-separated card codes like "AS,0H,KD" (0 is ten)
// and ${player} to the escaped player name.
type URLTemplate string

func (u URLTemplate) Render(ctx context.Context, player string, cards []blackjack.Card) (string, error) {
	codes := make([]string, len(cards))
	for i, c := range cards {
		codes[i] = CardCode(c)
	}
	r := os.Expand(string(u), func(k string) string {
		switch k {
		case "cards":
			return strings.Join(codes, ",")
		case "player":
			return url.PathEscape(player)
		}
		return ""
	})
	return r, nil
}

// CardCode returns a two-character code for a card, rank then suit.
func CardCode(c blackjack.Card) string {
	r := c.Rank.String()
	if c.Rank == 10 {
		r = "0"
	}
	return r + strings.ToUpper(c.Suit.String()[:1])
}
