package main

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"

	"github.com/zephyrtronium/casino/message"
)

func TestReceived(t *testing.T) {
	ts := time.Date(2024, 5, 29, 17, 4, 5, 0, time.UTC)
	m := &discordgo.Message{
		ID:        "1001",
		ChannelID: "relay",
		GuildID:   "kessoku",
		Content:   "!transfer <@2> 50",
		Timestamp: ts,
		Author:    &discordgo.User{ID: "1", Username: "bocchi", GlobalName: "Bocchi"},
		Member:    &discordgo.Member{Nick: "Hitori"},
		Mentions: []*discordgo.User{
			{ID: "2", Username: "ryou"},
			{ID: "3", Username: "kita", GlobalName: "Kita"},
		},
	}
	got := received(m, true)
	want := &message.Received{
		ID:        "1001",
		To:        "relay",
		Group:     "kessoku",
		Sender:    "1",
		Name:      "Hitori",
		Avatar:    m.Author.AvatarURL(""),
		Text:      "!transfer <@2> 50",
		Mentions:  map[string]string{"2": "ryou", "3": "Kita"},
		Timestamp: ts.UnixMilli(),
		IsAdmin:   true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrong message (-want +got):\n%s", diff)
	}
	if got.Avatar == "" {
		t.Errorf("no avatar")
	}
	if !got.Time().Equal(ts) {
		t.Errorf("wrong time: want %v, got %v", ts, got.Time())
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		name string
		u    *discordgo.User
		mem  *discordgo.Member
		want string
	}{
		{"username", &discordgo.User{Username: "bocchi"}, nil, "bocchi"},
		{"global", &discordgo.User{Username: "bocchi", GlobalName: "Bocchi"}, nil, "Bocchi"},
		{"nick", &discordgo.User{Username: "bocchi", GlobalName: "Bocchi"}, &discordgo.Member{Nick: "Hitori"}, "Hitori"},
		{"no-nick", &discordgo.User{Username: "bocchi"}, &discordgo.Member{}, "bocchi"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := displayName(c.u, c.mem); got != c.want {
				t.Errorf("wrong name: want %q, got %q", c.want, got)
			}
		})
	}
}

func TestSent(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		got := sent(message.Sent{To: "relay", Text: "hi"})
		if got.Content != "hi" || got.Reference != nil || got.Embeds != nil {
			t.Errorf("wrong message %+v", got)
		}
		want := []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers}
		if got.AllowedMentions == nil || !cmp.Equal(got.AllowedMentions.Parse, want) {
			t.Errorf("wrong allowed mentions %+v", got.AllowedMentions)
		}
	})
	t.Run("reply", func(t *testing.T) {
		got := sent(message.Sent{Reply: "1001", To: "relay", Text: "hi"})
		r := got.Reference
		if r == nil || r.MessageID != "1001" || r.ChannelID != "relay" {
			t.Fatalf("wrong reference %+v", r)
		}
		if r.FailIfNotExists == nil || *r.FailIfNotExists {
			t.Errorf("reply fails if the message is gone")
		}
	})
	t.Run("embed", func(t *testing.T) {
		e := &message.Embed{
			Title:       "Results",
			Description: "desc",
			Author:      "Bocchi",
			AuthorIcon:  "https://cdn.example/bocchi.png",
			Color:       message.Gold,
			Fields:      []message.Field{{Name: "Hand", Value: "A♠ 10♥", Inline: true}},
			Image:       "https://cards.example/AS,0H.png",
		}
		got := sent(message.Sent{To: "games", Embed: e})
		want := []*discordgo.MessageEmbed{{
			Title:       "Results",
			Description: "desc",
			Color:       message.Gold,
			Author:      &discordgo.MessageEmbedAuthor{Name: "Bocchi", IconURL: "https://cdn.example/bocchi.png"},
			Fields:      []*discordgo.MessageEmbedField{{Name: "Hand", Value: "A♠ 10♥", Inline: true}},
			Image:       &discordgo.MessageEmbedImage{URL: "https://cards.example/AS,0H.png"},
		}}
		if diff := cmp.Diff(want, got.Embeds); diff != "" {
			t.Errorf("wrong embeds (-want +got):\n%s", diff)
		}
	})
	t.Run("plain-embed", func(t *testing.T) {
		got := sent(message.Sent{To: "games", Embed: &message.Embed{Title: "Bet Placed"}})
		if len(got.Embeds) != 1 {
			t.Fatalf("wrong embeds %+v", got.Embeds)
		}
		if e := got.Embeds[0]; e.Author != nil || e.Image != nil || e.Fields != nil {
			t.Errorf("empty parts present: %+v", e)
		}
	})
}
