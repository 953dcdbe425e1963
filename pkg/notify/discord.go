package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/cuemby/oracle-monitor/pkg/log"
	"github.com/cuemby/oracle-monitor/pkg/report"
)

// Discord embed limits
const (
	maxFieldValue = 1024
	maxFieldName  = 256
	maxFields     = 25
)

const footerText = "Symphony Oracle Monitor"

// EmbedPoster is the part of a discordgo session used for delivery
type EmbedPoster interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSender posts reports as channel embeds
type DiscordSender struct {
	poster    EmbedPoster
	channelID string
	logger    zerolog.Logger
}

// NewDiscordSender creates a sender posting to channelID. poster is usually
// a *discordgo.Session.
func NewDiscordSender(poster EmbedPoster, channelID string) *DiscordSender {
	return &DiscordSender{
		poster:    poster,
		channelID: channelID,
		logger:    log.WithComponent("notify"),
	}
}

// NewSession creates a bot session from a raw token
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	return session, nil
}

// Send posts the report to the configured channel
func (s *DiscordSender) Send(ctx context.Context, r *report.Report) error {
	embed := Embed(r)

	msg, err := s.poster.ChannelMessageSendEmbed(s.channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: channel %s: %v", ErrDelivery, s.channelID, err)
	}

	s.logger.Info().
		Str("report_id", r.ID).
		Str("message_id", msg.ID).
		Bool("has_issues", r.HasIssues).
		Msg("Report sent to Discord")
	return nil
}

// Embed converts a report into a Discord embed
func Embed(r *report.Report) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     r.Title,
		Color:     r.Color,
		Timestamp: r.GeneratedAt.Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: footerText},
	}

	for _, section := range r.Sections {
		if len(embed.Fields) == maxFields {
			break
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   truncate(section.Name, maxFieldName),
			Value:  truncate(section.Text(), maxFieldValue),
			Inline: section.Inline,
		})
	}
	return embed
}

// truncate cuts s to at most limit runes, marking the cut with an ellipsis
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
