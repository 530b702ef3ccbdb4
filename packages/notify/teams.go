package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// TeamsNotifier posts an Adaptive Card to a Microsoft Teams webhook
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
}

type TeamsOption func(*TeamsNotifier)

func WithTeamsHTTPClient(c *http.Client) TeamsOption {
	return func(t *TeamsNotifier) {
		t.client = c
	}
}

func NewTeamsNotifier(webhookURL string, opts ...TeamsOption) *TeamsNotifier {
	t := &TeamsNotifier{
		webhookURL: webhookURL,
		client:     newWebhookClient(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *TeamsNotifier) Name() string {
	return "teams"
}

type teamsMessage struct {
	Type        string      `json:"type"`
	Attachments []teamsCard `json:"attachments"`
}

type teamsCard struct {
	ContentType string           `json:"contentType"`
	Content     teamsCardContent `json:"content"`
}

type teamsCardContent struct {
	Schema  string       `json:"$schema"`
	Type    string       `json:"type"`
	Version string       `json:"version"`
	Body    []teamsBlock `json:"body"`
}

type teamsBlock struct {
	Type      string      `json:"type"`
	Size      string      `json:"size,omitempty"`
	Weight    string      `json:"weight,omitempty"`
	Text      string      `json:"text,omitempty"`
	Color     string      `json:"color,omitempty"`
	Wrap      bool        `json:"wrap,omitempty"`
	Facts     []teamsFact `json:"facts,omitempty"`
	Spacing   string      `json:"spacing,omitempty"`
	Separator bool        `json:"separator,omitempty"`
}

type teamsFact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

func (t *TeamsNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	return postJSON(ctx, t.client, t.webhookURL, t.message(summary))
}

func (t *TeamsNotifier) message(summary *RunSummary) teamsMessage {
	color := "good"
	if !summary.Succeeded() {
		color = "attention"
	}

	title := summary.headline()
	if summary.Suite != "" {
		title = summary.Suite + ": " + title
	}

	facts := []teamsFact{
		{Title: "Cases", Value: strconv.Itoa(summary.Total)},
		{Title: "Passed", Value: strconv.Itoa(summary.Passed)},
		{Title: "Failed", Value: strconv.Itoa(summary.Failed)},
		{Title: "Skipped", Value: strconv.Itoa(summary.Skipped)},
		{Title: "Batches", Value: strconv.Itoa(summary.Batches)},
		{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String()},
	}
	if summary.Environment != "" {
		facts = append(facts, teamsFact{Title: "Environment", Value: summary.Environment})
	}

	body := []teamsBlock{
		{Type: "TextBlock", Size: "Large", Weight: "Bolder", Text: title, Color: color, Wrap: true},
		{Type: "FactSet", Facts: facts, Separator: true, Spacing: "Medium"},
	}
	if summary.Error != "" {
		body = append(body, teamsBlock{Type: "TextBlock", Text: "**Error:** " + summary.Error, Color: "attention", Wrap: true})
	}
	if len(summary.FailedCases) > 0 {
		body = append(body, teamsBlock{Type: "TextBlock", Text: "**Failed cases:**", Separator: true, Spacing: "Medium"})
		for _, fc := range summary.FailedCases {
			text := fmt.Sprintf("- `%s`", fc.ID)
			if fc.Error != "" {
				text += ": " + fc.Error
			}
			body = append(body, teamsBlock{Type: "TextBlock", Text: text, Wrap: true})
		}
		if summary.MoreFailed > 0 {
			body = append(body, teamsBlock{Type: "TextBlock", Text: fmt.Sprintf("…and %d more", summary.MoreFailed), Wrap: true})
		}
	}
	body = append(body, teamsBlock{
		Type:      "TextBlock",
		Text:      fmt.Sprintf("_hitchain run %s - %s_", summary.RunID, time.Now().Format(time.RFC3339)),
		Separator: true,
		Spacing:   "Medium",
	})

	return teamsMessage{
		Type: "message",
		Attachments: []teamsCard{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content: teamsCardContent{
				Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
				Type:    "AdaptiveCard",
				Version: "1.2",
				Body:    body,
			},
		}},
	}
}
