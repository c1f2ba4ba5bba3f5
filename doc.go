// Package fanout provides a composable webhook delivery engine for Go.
//
// Fanout is a library — not a service. Import it into your application to get
// registered webhook subscriptions with event filtering, signed at-least-once
// delivery with exponential backoff, a full per-attempt audit trail, and
// chat-platform integrations (Slack, Teams, Discord).
//
// Key features:
//   - Webhook subscriptions with wildcard event patterns and payload filters
//   - HMAC-SHA256 signature on every delivery
//   - Exponential backoff retries with dead letter queue and replay
//   - Composable store pattern with multiple backends (SQLite, Redis, Memory)
//   - Slack, Microsoft Teams, Discord and Zapier notification sinks
//   - Optional JSON Schema validation via a registered event type catalog
//
// Quick start:
//
//	f, err := fanout.New(
//	    fanout.WithStore(memoryStore),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	f.Start(ctx)
//
//	f.Webhooks().Create(ctx, webhook.Input{
//	    OwnerID: "user_123",
//	    Name:    "CI notifier",
//	    URL:     "https://ci.example.com/hooks/fanout",
//	    Events:  []string{"task.*"},
//	})
//
//	f.TriggerEvent(ctx, &event.Event{
//	    Type: "task.created",
//	    Data: map[string]any{"title": "Write release notes"},
//	})
package fanout
