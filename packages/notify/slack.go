package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SlackNotifier posts to a Slack incoming webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

type SlackOption func(*SlackNotifier)

func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

func WithSlackUsername(username string) SlackOption {
	return func(s *SlackNotifier) {
		s.username = username
	}
}

func WithSlackHTTPClient(c *http.Client) SlackOption {
	return func(s *SlackNotifier) {
		s.client = c
	}
}

func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "hitchain",
		iconEmoji:  ":link:",
		client:     newWebhookClient(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func (s *SlackNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	return postJSON(ctx, s.client, s.webhookURL, s.message(summary))
}

func (s *SlackNotifier) message(summary *RunSummary) slackMessage {
	color, emoji := "good", ":white_check_mark:"
	switch {
	case !summary.Succeeded():
		color, emoji = "danger", ":x:"
	case summary.IsRecovery:
		emoji = ":tada:"
	}

	fields := []slackField{
		{Title: "Cases", Value: strconv.Itoa(summary.Total), Short: true},
		{Title: "Passed", Value: strconv.Itoa(summary.Passed), Short: true},
		{Title: "Failed", Value: strconv.Itoa(summary.Failed), Short: true},
		{Title: "Skipped", Value: strconv.Itoa(summary.Skipped), Short: true},
		{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String(), Short: true},
	}
	if summary.Environment != "" {
		fields = append(fields, slackField{Title: "Environment", Value: summary.Environment, Short: true})
	}

	var text strings.Builder
	if summary.Error != "" {
		fmt.Fprintf(&text, "*Error:* %s\n", summary.Error)
	}
	if len(summary.FailedCases) > 0 {
		text.WriteString("*Failed cases:*\n")
		for _, fc := range summary.FailedCases {
			fmt.Fprintf(&text, "• `%s`", fc.ID)
			if fc.Name != "" && fc.Name != fc.ID {
				fmt.Fprintf(&text, " %s", fc.Name)
			}
			if fc.Error != "" {
				fmt.Fprintf(&text, ": %s", fc.Error)
			}
			text.WriteString("\n")
		}
		if summary.MoreFailed > 0 {
			fmt.Fprintf(&text, "…and %d more\n", summary.MoreFailed)
		}
	}

	title := summary.headline()
	if summary.Suite != "" {
		title = summary.Suite + ": " + title
	}

	return slackMessage{
		Channel:   s.channel,
		Username:  s.username,
		IconEmoji: s.iconEmoji,
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  emoji + " " + title,
			Text:   text.String(),
			Fields: fields,
			Footer: "hitchain run " + summary.RunID,
			TS:     time.Now().Unix(),
		}},
	}
}
