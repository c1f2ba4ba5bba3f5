package catalog

import "strings"

// Match checks if an event type name matches a subscription pattern.
//
// Supported patterns:
//
//	"task.created"  → exact match
//	"task.*"        → matches task.created, task.completed, etc. (single segment wildcard)
//	"*"             → matches everything
func Match(pattern, eventType string) bool {
	if pattern == "*" {
		return true
	}

	if pattern == eventType {
		return true
	}

	patternParts := strings.Split(pattern, ".")
	eventParts := strings.Split(eventType, ".")

	if len(patternParts) != len(eventParts) {
		return false
	}

	for i, pp := range patternParts {
		if pp == "*" {
			continue
		}
		if pp != eventParts[i] {
			return false
		}
	}

	return true
}

// Category returns the event type's category: the segment before the first
// dot ("task" for "task.created"). Returns the whole name when there is no dot.
func Category(eventType string) string {
	if i := strings.IndexByte(eventType, '.'); i > 0 {
		return eventType[:i]
	}
	return eventType
}
