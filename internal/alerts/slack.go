package alerts

import (
	"context"

	slackapi "github.com/slack-go/slack"
)

// slackPoster abstracts the Slack API methods we use, enabling test mocks.
type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Slack delivers alerts to a Slack channel via the Web API.
type Slack struct {
	api       slackPoster
	channelID string
}

// NewSlack creates a Slack notifier posting to channelID.
func NewSlack(botToken, channelID string) *Slack {
	return &Slack{
		api:       slackapi.New(botToken),
		channelID: channelID,
	}
}

// Notify implements Notifier.
func (s *Slack) Notify(ctx context.Context, ev Event) error {
	attachment := slackapi.Attachment{
		Color:  severityColor(ev.Kind),
		Title:  ev.Title,
		Text:   ev.Body,
		Footer: ev.Kind,
	}
	_, _, err := s.api.PostMessageContext(ctx, s.channelID,
		slackapi.MsgOptionAttachments(attachment),
	)
	return err
}
