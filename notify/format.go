package notify

import (
	"fmt"
	"strconv"
	"strings"
)

// defaultColor is used for event categories without a color of their own.
const defaultColor = "#6B7280"

var categoryColors = map[string]string{
	"task":      "#10B981",
	"project":   "#3B82F6",
	"invoice":   "#F59E0B",
	"proposal":  "#8B5CF6",
	"user":      "#06B6D4",
	"time":      "#EF4444",
	"milestone": "#84CC16",
	"deadline":  "#F97316",
	"report":    "#6366F1",
}

// EventColor returns the hex accent color for an event type, keyed on the
// category prefix before the first dot.
func EventColor(eventType string) string {
	category, _, _ := strings.Cut(eventType, ".")
	if c, ok := categoryColors[category]; ok {
		return c
	}
	return defaultColor
}

// colorInt converts a "#RRGGBB" color to its integer form (Discord embeds).
func colorInt(hex string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}

// EventTitle builds a human readable headline for an event from well-known
// payload fields. Unknown event types fall back to a generic form.
func EventTitle(eventType string, data map[string]any) string {
	switch eventType {
	case "task.created":
		return "New Task: " + field(data, "title")
	case "task.updated":
		return "Task Updated: " + field(data, "title")
	case "task.completed":
		return "Task Completed: " + field(data, "title")
	case "task.deleted":
		return "Task Deleted: " + field(data, "title")
	case "project.created":
		return "New Project: " + field(data, "name")
	case "project.updated":
		return "Project Updated: " + field(data, "name")
	case "project.completed":
		return "Project Completed: " + field(data, "name")
	case "invoice.created":
		return "New Invoice: " + field(data, "clientName")
	case "invoice.paid":
		return "Invoice Paid: " + field(data, "clientName")
	case "invoice.overdue":
		return "Invoice Overdue: " + field(data, "clientName")
	case "proposal.sent":
		return "Proposal Sent: " + field(data, "clientName")
	case "proposal.accepted":
		return "Proposal Accepted: " + field(data, "clientName")
	case "proposal.rejected":
		return "Proposal Rejected: " + field(data, "clientName")
	case "user.invited":
		return "User Invited: " + field(data, "email")
	case "user.joined":
		return "User Joined: " + field(data, "name")
	case "time.logged":
		return "Time Logged: " + field(data, "duration") + " minutes"
	case "milestone.reached":
		return "Milestone Reached: " + field(data, "title")
	case "deadline.approaching":
		return "Deadline Approaching: " + field(data, "title")
	case "report.generated":
		return "Report Generated: " + field(data, "type")
	}
	return "Event: " + eventType
}

// field stringifies a top-level payload value, empty when absent.
func field(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// highlightFields are the payload keys surfaced as structured fields in
// chat messages, in display order.
var highlightFields = []struct {
	key   string
	title string
}{
	{"priority", "Priority"},
	{"status", "Status"},
	{"assignedTo", "Assigned To"},
}
