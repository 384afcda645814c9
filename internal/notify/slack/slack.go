// Package slack announces newly tracked devices to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/devwatch/internal/evidence"
)

const (
	maxNotesLen = 3000
	httpTimeout = 10 * time.Second
)

// Notifier posts new device dossiers to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
	now        func() time.Time
}

// New creates a new Slack notifier. If webhookURL is empty, NotifyNewDevice
// is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
		now:    time.Now,
	}
}

// NotifyNewDevice posts d to the configured webhook.
func (n *Notifier) NotifyNewDevice(ctx context.Context, scanID string, d *evidence.Dossier) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(scanID, d, n.now()))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "new device announced", "scan_id", scanID, "device_id", d.ID, "badge", d.CorrelationBadge)
	return nil
}

func buildMessage(scanID string, d *evidence.Dossier, at time.Time) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(d),
			{"type": "divider"},
			fieldsBlock(d),
			{"type": "divider"},
			notesBlock(d),
			{"type": "divider"},
			contextBlock(scanID, at),
		},
	}
}

func headerBlock(d *evidence.Dossier) map[string]any {
	text := fmt.Sprintf("%s New device: %s", badgeEmoji(d.CorrelationBadge), d.ID)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(d *evidence.Dossier) map[string]any {
	matched := "none"
	if len(d.MatchedIDs) > 0 {
		matched = strings.Join(d.MatchedIDs, ", ")
	}
	usb := "none"
	if len(d.DetectionEvidence.USBEvidence) > 0 {
		usb = strings.Join(d.DetectionEvidence.USBEvidence, ", ")
	}

	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Badge:* %s", d.CorrelationBadge),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Confidence:* %.2f", d.Confidence),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Platform:* %s", d.Platform),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Mode:* %s", d.DeviceMode),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Matched ids:* %s", matched),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*USB:* %s", usb),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func notesBlock(d *evidence.Dossier) map[string]any {
	text := truncate(strings.Join(d.CorrelationNotes, "\n"), maxNotesLen)
	if text == "" {
		text = "_No correlation notes._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Correlation notes*\n\n%s", text),
		},
	}
}

func contextBlock(scanID string, at time.Time) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("devwatch • scan %s • %s", scanID, at.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func badgeEmoji(b evidence.Badge) string {
	switch b {
	case evidence.BadgeCorrelated, evidence.BadgeSystemConfirmed:
		return "\U0001f7e2" // green circle
	case evidence.BadgeCorrelatedWeak, evidence.BadgeLikely:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f534" // red circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
