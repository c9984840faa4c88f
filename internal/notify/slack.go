// Package notify posts migration run events to a Slack incoming webhook.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/johndauphine/crosswalk/internal/util"
)

const (
	colorGood    = "#36a64f"
	colorWarning = "#ffc107"
	colorDanger  = "#dc3545"
	colorInfo    = "#439fe0"

	defaultUsername = "crosswalk"
	maxErrorLen     = 500
	maxListed       = 10
)

// SlackConfig configures the webhook.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
}

// SlackMessage is the webhook payload.
type SlackMessage struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	IconEmoji   string       `json:"icon_emoji,omitempty"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is one colored block of a message.
type Attachment struct {
	Color  string  `json:"color"`
	Title  string  `json:"title"`
	Text   string  `json:"text,omitempty"`
	Fields []Field `json:"fields,omitempty"`
	Footer string  `json:"footer,omitempty"`
	Ts     int64   `json:"ts,omitempty"`
}

// Field is a title/value pair inside an attachment.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notifier sends run events. A disabled notifier accepts every call and
// sends nothing.
type Notifier struct {
	config *SlackConfig
	client *http.Client
}

// New creates a notifier. A nil config yields a disabled notifier.
func New(cfg *SlackConfig) *Notifier {
	return &Notifier{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// IsEnabled reports whether messages will be sent.
func (n *Notifier) IsEnabled() bool {
	return n.config != nil && n.config.Enabled && n.config.WebhookURL != ""
}

func (n *Notifier) getUsername() string {
	if n.config != nil && n.config.Username != "" {
		return n.config.Username
	}
	return defaultUsername
}

// RunStarted announces a run.
func (n *Notifier) RunStarted(runID, source, target string, tables int) error {
	return n.send(Attachment{
		Color: colorInfo,
		Title: "Migration Started",
		Fields: []Field{
			{Title: "Run ID", Value: runID, Short: true},
			{Title: "Tables", Value: strconv.Itoa(tables), Short: true},
			{Title: "Source", Value: source, Short: true},
			{Title: "Target", Value: target, Short: true},
		},
	})
}

// RunCompleted reports a run in which every table loaded.
func (n *Notifier) RunCompleted(runID string, duration time.Duration, tables int, rows int64, blocked int) error {
	fields := []Field{
		{Title: "Run ID", Value: runID, Short: true},
		{Title: "Duration", Value: formatDuration(duration), Short: true},
		{Title: "Tables", Value: strconv.Itoa(tables), Short: true},
		{Title: "Rows Loaded", Value: formatNumberWithCommas(rows), Short: true},
	}
	color := colorGood
	if blocked > 0 {
		color = colorWarning
		fields = append(fields, Field{Title: "Rows Quarantined", Value: formatNumberWithCommas(int64(blocked)), Short: true})
	}
	return n.send(Attachment{Color: color, Title: "Migration Completed", Fields: fields})
}

// RunCompletedWithErrors reports a run in which some tables failed or were
// left pending.
func (n *Notifier) RunCompletedWithErrors(runID string, duration time.Duration, succeeded, failed, remaining int,
	rows int64, failedTables, remainingTables []string) error {
	fields := []Field{
		{Title: "Run ID", Value: runID, Short: true},
		{Title: "Duration", Value: formatDuration(duration), Short: true},
		{Title: "Succeeded", Value: strconv.Itoa(succeeded), Short: true},
		{Title: "Failed", Value: strconv.Itoa(failed), Short: true},
		{Title: "Remaining", Value: strconv.Itoa(remaining), Short: true},
		{Title: "Rows Loaded", Value: formatNumberWithCommas(rows), Short: true},
	}
	if len(failedTables) > 0 {
		fields = append(fields, Field{Title: "Failed Tables", Value: listTables(failedTables)})
	}
	if len(remainingTables) > 0 {
		fields = append(fields, Field{Title: "Remaining Tables", Value: listTables(remainingTables)})
	}
	return n.send(Attachment{Color: colorWarning, Title: "Migration Completed With Errors", Fields: fields})
}

// RunFailed reports a run that could not complete.
func (n *Notifier) RunFailed(runID string, err error, duration time.Duration) error {
	msg := "Unknown error"
	if err != nil {
		msg = util.Truncate(err.Error(), maxErrorLen)
	}
	return n.send(Attachment{
		Color: colorDanger,
		Title: "Migration Failed",
		Fields: []Field{
			{Title: "Run ID", Value: runID, Short: true},
			{Title: "Duration", Value: formatDuration(duration), Short: true},
			{Title: "Error", Value: msg},
		},
	})
}

// TableFailed reports one table whose load failed.
func (n *Notifier) TableFailed(runID, table string, err error) error {
	msg := "Unknown error"
	if err != nil {
		msg = util.Truncate(err.Error(), maxErrorLen)
	}
	return n.send(Attachment{
		Color: colorDanger,
		Title: "Table Load Failed",
		Fields: []Field{
			{Title: "Run ID", Value: runID, Short: true},
			{Title: "Table", Value: table, Short: true},
			{Title: "Error", Value: msg},
		},
	})
}

func (n *Notifier) send(a Attachment) error {
	if !n.IsEnabled() {
		return nil
	}
	a.Footer = defaultUsername
	a.Ts = time.Now().Unix()
	msg := SlackMessage{
		Channel:     n.config.Channel,
		Username:    n.getUsername(),
		IconEmoji:   ":bird:",
		Attachments: []Attachment{a},
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding slack message: %w", err)
	}
	resp, err := n.client.Post(n.config.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting slack message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned %s", resp.Status)
	}
	return nil
}

func listTables(tables []string) string {
	if len(tables) <= maxListed {
		return strings.Join(tables, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(tables[:maxListed], ", "), len(tables)-maxListed)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int64(d / time.Hour)
	m := int64(d/time.Minute) % 60
	s := int64(d/time.Second) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func formatNumberWithCommas(n int64) string {
	if n < 0 {
		return "-" + formatNumberWithCommas(-n)
	}
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
