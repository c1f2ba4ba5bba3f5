package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fanouthq/fanout/integration"
	"github.com/fanouthq/fanout/observability"
)

// Notifier sends formatted event notifications to third-party integrations.
// Sends are best-effort: a failed notification is logged and counted but
// never retried, and never affects webhook delivery.
type Notifier struct {
	client  *http.Client
	appName string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewNotifier creates a notifier. appName appears as the message footer.
func NewNotifier(timeout time.Duration, appName string, metrics *observability.Metrics, logger *slog.Logger) *Notifier {
	if appName == "" {
		appName = "Fanout"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		client:  &http.Client{Timeout: timeout},
		appName: appName,
		logger:  logger,
		metrics: metrics,
	}
}

// Send dispatches an event to one integration if it has an enabled mapping
// for the event type. Integrations without a mapping are skipped silently.
func (n *Notifier) Send(ctx context.Context, intg *integration.Integration, eventType string, data map[string]any) error {
	mapping := intg.MappingFor(eventType)
	if mapping == nil {
		return nil
	}

	var err error
	switch intg.Kind {
	case integration.KindSlack:
		err = n.sendSlack(ctx, intg, eventType, data, mapping.Template)
	case integration.KindTeams:
		err = n.sendTeams(ctx, intg, eventType, data, mapping.Template)
	case integration.KindDiscord:
		err = n.sendDiscord(ctx, intg, eventType, data, mapping.Template)
	case integration.KindZapier, integration.KindCustom:
		err = n.sendGeneric(ctx, intg, eventType, data)
	default:
		n.logger.WarnContext(ctx, "unsupported integration kind",
			"integration_id", intg.ID, "kind", intg.Kind)
		return nil
	}

	if err != nil {
		if n.metrics != nil {
			n.metrics.RecordNotification(string(intg.Kind), "failed")
		}
		n.logger.WarnContext(ctx, "notification failed",
			"integration_id", intg.ID, "kind", intg.Kind, "event", eventType, "error", err)
		return err
	}

	if n.metrics != nil {
		n.metrics.RecordNotification(string(intg.Kind), "sent")
	}
	n.logger.DebugContext(ctx, "notification sent",
		"integration_id", intg.ID, "kind", intg.Kind, "event", eventType)
	return nil
}

func (n *Notifier) sendSlack(ctx context.Context, intg *integration.Integration, eventType string, data map[string]any, template string) error {
	if intg.Config.WebhookURL == "" {
		return fmt.Errorf("slack integration %s has no webhook URL", intg.ID)
	}
	msg := buildSlackMessage(eventType, data, template, intg.Config.ChannelID, n.appName, time.Now())
	return n.post(ctx, intg.Config.WebhookURL, msg)
}

func (n *Notifier) sendTeams(ctx context.Context, intg *integration.Integration, eventType string, data map[string]any, template string) error {
	if intg.Config.WebhookURL == "" {
		return fmt.Errorf("teams integration %s has no webhook URL", intg.ID)
	}
	return n.post(ctx, intg.Config.WebhookURL, buildTeamsCard(eventType, data, template))
}

func (n *Notifier) sendDiscord(ctx context.Context, intg *integration.Integration, eventType string, data map[string]any, template string) error {
	if intg.Config.WebhookURL == "" {
		return fmt.Errorf("discord integration %s has no webhook URL", intg.ID)
	}
	msg := buildDiscordMessage(eventType, data, template, n.appName, time.Now())
	return n.post(ctx, intg.Config.WebhookURL, msg)
}

// sendGeneric posts the raw event to Zapier-style and custom hooks.
func (n *Notifier) sendGeneric(ctx context.Context, intg *integration.Integration, eventType string, data map[string]any) error {
	if intg.Config.WebhookURL == "" {
		return fmt.Errorf("%s integration %s has no webhook URL", intg.Kind, intg.ID)
	}
	payload := map[string]any{
		"event":     eventType,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	return n.post(ctx, intg.Config.WebhookURL, payload)
}

func (n *Notifier) post(ctx context.Context, url string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: URL is a user-configured integration destination.
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 512)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}
