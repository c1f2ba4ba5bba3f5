// Package integration manages external chat-platform sinks (Slack, Teams,
// Discord) that receive formatted, human-readable event notifications.
// Unlike webhooks, integration sends are fire-and-forget: no queueing,
// no retries, no delivery history.
package integration

import (
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/internal/entity"
)

// Kind identifies the external platform an integration targets.
type Kind string

// Supported integration kinds.
const (
	KindSlack   Kind = "slack"
	KindTeams   Kind = "teams"
	KindDiscord Kind = "discord"
	KindZapier  Kind = "zapier"
	KindCustom  Kind = "custom"
)

// Valid reports whether k is a known integration kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSlack, KindTeams, KindDiscord, KindZapier, KindCustom:
		return true
	}
	return false
}

// Config holds platform-specific connection settings.
type Config struct {
	// WebhookURL is the incoming-webhook URL for the platform. Required for
	// slack, teams and discord.
	WebhookURL string `json:"webhook_url,omitempty"`

	// APIKey authenticates API-based platforms.
	APIKey string `json:"api_key,omitempty"`

	// ChannelID routes Slack messages to a specific channel.
	ChannelID string `json:"channel_id,omitempty"`

	// TeamID identifies the Teams team.
	TeamID string `json:"team_id,omitempty"`

	// BotToken authenticates bot-based sends.
	BotToken string `json:"bot_token,omitempty"`

	// Settings holds free-form platform settings.
	Settings map[string]any `json:"settings,omitempty"`
}

// EventMapping binds an event type to a message template for one integration.
type EventMapping struct {
	// Event is the event type this mapping fires on (e.g. "task.created").
	Event string `json:"event"`

	// Template is the message body with {{dotted.path}} placeholders
	// resolved against the event payload.
	Template string `json:"template"`

	// Enabled gates the mapping without removing it.
	Enabled bool `json:"enabled"`
}

// Integration is a registered chat-platform sink.
type Integration struct {
	entity.Entity

	// ID is the unique TypeID for this integration.
	ID id.ID `json:"id"`

	// Kind identifies the target platform.
	Kind Kind `json:"kind"`

	// OwnerID identifies the user that created this integration.
	OwnerID string `json:"owner_id"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// Config holds platform-specific connection settings.
	Config Config `json:"config"`

	// EventMappings bind event types to message templates.
	EventMappings []EventMapping `json:"event_mappings"`

	// Active gates sends. Inactive integrations never receive notifications.
	Active bool `json:"active"`
}

// MappingFor returns the enabled mapping for an event type, or nil.
func (i *Integration) MappingFor(eventType string) *EventMapping {
	for idx := range i.EventMappings {
		m := &i.EventMappings[idx]
		if m.Event == eventType && m.Enabled {
			return m
		}
	}
	return nil
}

// ListOpts configures filtering and pagination for integration listing.
type ListOpts struct {
	Offset int
	Limit  int
	Kind   Kind
	Active *bool
}
