// Package alerting fans operational and user notifications out to the
// configured sinks (Slack webhook, email). Delivery is best effort: a dead
// sink is logged and never fails the job that raised the alert.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/investoscope/investoscope-backend/internal/config"
	"github.com/investoscope/investoscope-backend/internal/logging"
	"github.com/investoscope/investoscope-backend/internal/mailer"
)

// Notifier delivers alert messages to all configured sinks.
type Notifier struct {
	cfg        config.AlertConfig
	mailer     *mailer.Mailer
	httpClient *http.Client
}

// NewNotifier creates a Notifier over the configured sinks.
func NewNotifier(cfg config.AlertConfig, m *mailer.Mailer) *Notifier {
	return &Notifier{
		cfg:        cfg,
		mailer:     m,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NotifySystem sends an operational alert (sync failure, staleness guard
// trip, repeated-failure threshold) to the ops sinks.
func (n *Notifier) NotifySystem(ctx context.Context, subject, message string) {
	n.postSlack(ctx, fmt.Sprintf("*%s*\n%s", subject, message))

	if n.mailer.Enabled() && n.cfg.EmailTo != "" {
		recipients := splitRecipients(n.cfg.EmailTo)
		if err := n.mailer.Send(recipients, subject, message); err != nil {
			logging.Warn("alert email delivery failed", logging.Fields{
				"subject": subject,
				"error":   err.Error(),
			})
		}
	}
}

// NotifyUser sends a notification to one user's email address. Used for
// triggered price alerts; silently drops when the user has no email or mail
// is not configured.
func (n *Notifier) NotifyUser(email, subject, message string) {
	if email == "" || !n.mailer.Enabled() {
		return
	}
	if err := n.mailer.Send([]string{email}, subject, message); err != nil {
		logging.Warn("user alert email delivery failed", logging.Fields{
			"subject": subject,
			"error":   err.Error(),
		})
	}
}

func (n *Notifier) postSlack(ctx context.Context, text string) {
	if n.cfg.SlackWebhookURL == "" {
		return
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.SlackWebhookURL, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		logging.Warn("slack alert delivery failed", logging.Fields{"error": err.Error()})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logging.Warn("slack alert delivery failed", logging.Fields{"status": resp.StatusCode})
	}
}

func splitRecipients(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
