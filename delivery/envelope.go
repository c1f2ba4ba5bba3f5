package delivery

import (
	"encoding/json"
	"time"

	"github.com/fanouthq/fanout/id"
)

// Envelope is the JSON structure POSTed to webhook URLs. It is built once at
// queue time and stored on the delivery, so later webhook mutations never
// change what an already-queued delivery sends.
type Envelope struct {
	// Event is the event type name.
	Event string `json:"event"`

	// Data is the domain payload as handed to TriggerEvent.
	Data map[string]any `json:"data"`

	// Metadata carries caller-supplied context. Always present, possibly empty.
	Metadata map[string]any `json:"metadata"`

	// Timestamp is when the delivery was queued.
	Timestamp time.Time `json:"timestamp"`

	// Webhook identifies the receiving webhook.
	Webhook EnvelopeWebhook `json:"webhook"`
}

// EnvelopeWebhook is the webhook identity embedded in every envelope.
type EnvelopeWebhook struct {
	ID   id.ID  `json:"id"`
	Name string `json:"name"`
}

// NewEnvelope builds and marshals the delivery envelope.
func NewEnvelope(eventType string, data, metadata map[string]any, whID id.ID, whName string) (json.RawMessage, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	env := Envelope{
		Event:     eventType,
		Data:      data,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
		Webhook:   EnvelopeWebhook{ID: whID, Name: whName},
	}
	return json.Marshal(env)
}
