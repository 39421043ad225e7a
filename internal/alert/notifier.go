package alert

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/skywalker-88/nightwatch/internal/report"
)

// requestTimeout bounds every webhook attempt; there is no retry (spec.md
// §4.H, §9 "Alert fan-out retries. Absent from the source.").
const requestTimeout = 30 * time.Second

// Notifier delivers a report to one external notification channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, r report.Report) error
}

func httpClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

func postJSON(ctx context.Context, method, url string, headers map[string]string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alert: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("alert: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert: non-2xx response: %d", resp.StatusCode)
	}
	return nil
}

// --- Slack ---

// slackColor returns the attachment color for a severity band (spec.md §6):
// 10|9 = "danger", 8|7 = "warning", else "good".
func slackColor(severity int) string {
	switch {
	case severity >= 9:
		return "danger"
	case severity >= 7:
		return "warning"
	default:
		return "good"
	}
}

// slackEmoji is an informational prefix per severity band.
func slackEmoji(severity int) string {
	switch {
	case severity >= 9:
		return ":rotating_light:"
	case severity >= 7:
		return ":warning:"
	default:
		return ":information_source:"
	}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Fields []slackField `json:"fields"`
	Text   string       `json:"text"`
	TS     int64        `json:"ts"`
}

type slackPayload struct {
	Channel     string            `json:"channel"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji"`
	Attachments []slackAttachment `json:"attachments"`
}

// SlackNotifier posts reports to a Slack incoming webhook.
type SlackNotifier struct {
	WebhookURL string
	Channel    string
	Username   string
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(ctx context.Context, r report.Report) error {
	payload := slackPayload{
		Channel:   s.Channel,
		Username:  s.Username,
		IconEmoji: slackEmoji(r.Severity),
		Attachments: []slackAttachment{{
			Color: slackColor(r.Severity),
			Title: r.RuleName,
			Fields: []slackField{
				{Title: "user", Value: r.User, Short: true},
				{Title: "severity", Value: fmt.Sprintf("%d", r.Severity), Short: true},
				{Title: "detected_ip", Value: r.DetectedIP, Short: true},
				{Title: "trusted_ip", Value: r.TrustedIP, Short: true},
			},
			Text: r.Description,
			TS:   r.Timestamp,
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("slack: encode payload: %w", err)
	}
	return postJSON(ctx, http.MethodPost, s.WebhookURL, nil, body)
}

// --- Discord ---

// discordColor returns the embed color code per severity (spec.md §6).
func discordColor(severity int) int {
	switch severity {
	case 10:
		return 0xFF0000
	case 9:
		return 0xFF6600
	case 8:
		return 0xFFCC00
	case 7:
		return 0x00CCFF
	default:
		return 0x00FF00
	}
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields"`
	Timestamp   string         `json:"timestamp"` // ISO-8601
	Footer      discordFooter  `json:"footer"`
}

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

// DiscordNotifier posts reports to a Discord incoming webhook.
type DiscordNotifier struct {
	WebhookURL string
	Username   string
}

func (d *DiscordNotifier) Name() string { return "discord" }

func (d *DiscordNotifier) Send(ctx context.Context, r report.Report) error {
	payload := discordPayload{
		Username: d.Username,
		Embeds: []discordEmbed{{
			Title:       r.RuleName,
			Description: r.Description,
			Color:       discordColor(r.Severity),
			Fields: []discordField{
				{Name: "user", Value: r.User, Inline: true},
				{Name: "severity", Value: fmt.Sprintf("%d", r.Severity), Inline: true},
				{Name: "detected_ip", Value: r.DetectedIP, Inline: true},
				{Name: "trusted_ip", Value: r.TrustedIP, Inline: true},
			},
			Timestamp: time.Unix(r.Timestamp, 0).UTC().Format(time.RFC3339),
			Footer:    discordFooter{Text: "nightwatch"},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: encode payload: %w", err)
	}
	return postJSON(ctx, http.MethodPost, d.WebhookURL, nil, body)
}

// --- Generic ---

// GenericNotifier POSTs (or PUTs) the raw report JSON to an arbitrary
// endpoint with optional custom headers.
type GenericNotifier struct {
	URL     string
	Method  string // defaults to POST
	Headers map[string]string
}

func (g *GenericNotifier) Name() string { return "generic" }

func (g *GenericNotifier) Send(ctx context.Context, r report.Report) error {
	method := g.Method
	if method == "" {
		method = http.MethodPost
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("generic: encode payload: %w", err)
	}
	return postJSON(ctx, method, g.URL, g.Headers, body)
}
