package webhook

import "fmt"

// Filters are payload-level allow-lists evaluated at dispatch time.
// A delivery is suppressed when a dimension is configured, the payload
// carries the corresponding field, and the value is not in the allow-list.
// An absent filter dimension or an absent payload field never suppresses.
type Filters struct {
	// ProjectIDs restricts deliveries by the payload's "projectId" field.
	ProjectIDs []string `json:"project_ids,omitempty"`

	// UserIDs restricts deliveries by the first present of the payload's
	// "assignedToId", "createdById", or "userId" fields.
	UserIDs []string `json:"user_ids,omitempty"`

	// Priorities restricts deliveries by the payload's "priority" field.
	Priorities []string `json:"priorities,omitempty"`
}

// Allow reports whether a payload passes every configured filter dimension.
// A nil Filters allows everything.
func (f *Filters) Allow(payload map[string]any) bool {
	if f == nil {
		return true
	}

	if len(f.ProjectIDs) > 0 {
		if v, ok := payloadString(payload, "projectId"); ok && !contains(f.ProjectIDs, v) {
			return false
		}
	}

	if len(f.UserIDs) > 0 {
		if v, ok := firstPayloadString(payload, "assignedToId", "createdById", "userId"); ok && !contains(f.UserIDs, v) {
			return false
		}
	}

	if len(f.Priorities) > 0 {
		if v, ok := payloadString(payload, "priority"); ok && !contains(f.Priorities, v) {
			return false
		}
	}

	return true
}

// payloadString returns the payload field as a string. Non-string values are
// stringified so numeric IDs compare against the configured allow-list.
func payloadString(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key]
	if !ok || v == nil {
		return "", false
	}
	if s, isStr := v.(string); isStr {
		return s, true
	}
	return fmt.Sprint(v), true
}

// firstPayloadString returns the first present field among keys, in order.
func firstPayloadString(payload map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := payloadString(payload, k); ok {
			return v, true
		}
	}
	return "", false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
