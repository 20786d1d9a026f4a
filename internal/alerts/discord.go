package alerts

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// discordSender abstracts the discordgo.Session methods we use, enabling
// test mocks.
type discordSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord delivers alerts to a Discord channel via the REST API. No
// gateway connection is opened; embeds are sent directly.
type Discord struct {
	sess      discordSender
	channelID string
}

// NewDiscord creates a Discord notifier posting to channelID.
func NewDiscord(botToken, channelID string) (*Discord, error) {
	sess, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("alerts: create discord session: %w", err)
	}
	return &Discord{sess: sess, channelID: channelID}, nil
}

// Notify implements Notifier.
func (d *Discord) Notify(ctx context.Context, ev Event) error {
	embed := &discordgo.MessageEmbed{
		Title:       ev.Title,
		Description: ev.Body,
		Color:       hexColor(severityColor(ev.Kind)),
		Footer:      &discordgo.MessageEmbedFooter{Text: ev.Kind},
	}
	_, err := d.sess.ChannelMessageSendEmbed(d.channelID, embed, discordgo.WithContext(ctx))
	return err
}

// hexColor converts "#rrggbb" to the integer form Discord expects.
func hexColor(s string) int {
	if len(s) != 7 || s[0] != '#' {
		return 0
	}
	v, err := strconv.ParseInt(s[1:], 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
