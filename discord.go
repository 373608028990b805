package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/zephyrtronium/casino/message"
)

// discordClient is a connection to Discord.
type discordClient struct {
	session *discordgo.Session
}

// discord creates a Discord session delivering guild messages to the bot.
// It also directs the bot's outgoing messages to the session.
func (b *Bot) discord(ctx context.Context, token string) (*discordClient, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	// Guilds populate the state used for channel names and permissions.
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	session.AddHandler(func(session *discordgo.Session, event *discordgo.MessageCreate) {
		b.onDiscordMessage(ctx, session, event)
	})
	b.send = func(ctx context.Context, msg message.Sent) {
		discordSend(ctx, session, msg)
	}
	return &discordClient{session: session}, nil
}

func (b *Bot) onDiscordMessage(ctx context.Context, session *discordgo.Session, event *discordgo.MessageCreate) {
	// Ignore messages sent by bots, ourselves included, and direct messages.
	if event.Author == nil || event.Author.Bot || event.GuildID == "" {
		return
	}
	log := slog.With(slog.String("trace", event.ID), slog.String("in", event.GuildID))
	name := event.ChannelID
	if c, err := session.State.Channel(event.ChannelID); err == nil {
		name = c.Name
	}
	perms, err := session.UserChannelPermissions(event.Author.ID, event.ChannelID, discordgo.WithContext(ctx))
	if err != nil {
		// Treat the sender as a regular user.
		log.WarnContext(ctx, "couldn't get permissions", slog.Any("err", err), slog.String("user", event.Author.ID))
	}
	isAdmin := perms&(discordgo.PermissionManageServer|discordgo.PermissionAdministrator) != 0
	ch := b.channel(event.ChannelID, event.GuildID, name)
	b.onMessage(ctx, ch, received(event.Message, isAdmin))
}

// received converts a Discord message.
func received(m *discordgo.Message, isAdmin bool) *message.Received {
	r := &message.Received{
		ID:        m.ID,
		To:        m.ChannelID,
		Group:     m.GuildID,
		Sender:    m.Author.ID,
		Name:      displayName(m.Author, m.Member),
		Avatar:    m.Author.AvatarURL(""),
		Text:      m.Content,
		Timestamp: m.Timestamp.UnixMilli(),
		IsAdmin:   isAdmin,
	}
	if len(m.Mentions) != 0 {
		r.Mentions = make(map[string]string, len(m.Mentions))
		for _, u := range m.Mentions {
			r.Mentions[u.ID] = displayName(u, nil)
		}
	}
	return r
}

// displayName returns the name a user shows in a guild.
func displayName(u *discordgo.User, mem *discordgo.Member) string {
	switch {
	case mem != nil && mem.Nick != "":
		return mem.Nick
	case u.GlobalName != "":
		return u.GlobalName
	default:
		return u.Username
	}
}

// sent converts a message to send to Discord.
func sent(msg message.Sent) *discordgo.MessageSend {
	r := &discordgo.MessageSend{
		Content: msg.Text,
		// Relay replies echo user text, so only user mentions may ping.
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
		},
	}
	if msg.Reply != "" {
		fail := false
		r.Reference = &discordgo.MessageReference{
			MessageID:       msg.Reply,
			ChannelID:       msg.To,
			FailIfNotExists: &fail,
		}
	}
	if e := msg.Embed; e != nil {
		v := &discordgo.MessageEmbed{
			Title:       e.Title,
			Description: e.Description,
			Color:       e.Color,
		}
		if e.Author != "" {
			v.Author = &discordgo.MessageEmbedAuthor{Name: e.Author, IconURL: e.AuthorIcon}
		}
		for _, f := range e.Fields {
			v.Fields = append(v.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		if e.Image != "" {
			v.Image = &discordgo.MessageEmbedImage{URL: e.Image}
		}
		r.Embeds = []*discordgo.MessageEmbed{v}
	}
	return r
}

func discordSend(ctx context.Context, session *discordgo.Session, msg message.Sent) {
	_, err := session.ChannelMessageSendComplex(msg.To, sent(msg), discordgo.WithContext(ctx))
	if err != nil {
		slog.ErrorContext(ctx, "failed to send discord message", slog.Any("err", err), slog.String("channel", msg.To))
	}
}

// Start opens the Discord websocket connection.
func (dc *discordClient) Start() error {
	return dc.session.Open()
}

// Close closes the Discord websocket connection.
func (dc *discordClient) Close() error {
	return dc.session.Close()
}
