package notify

import "time"

type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields"`
	Footer      discordFooter  `json:"footer"`
	Timestamp   string         `json:"timestamp"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func buildDiscordMessage(eventType string, data map[string]any, template, footer string, now time.Time) discordMessage {
	title := EventTitle(eventType, data)

	fields := make([]discordField, 0, len(highlightFields))
	for _, hf := range highlightFields {
		if v := field(data, hf.key); v != "" {
			fields = append(fields, discordField{Name: hf.title, Value: v, Inline: true})
		}
	}

	return discordMessage{
		Embeds: []discordEmbed{{
			Title:       title,
			Description: Interpolate(template, data),
			Color:       colorInt(EventColor(eventType)),
			Fields:      fields,
			Footer:      discordFooter{Text: footer},
			Timestamp:   now.UTC().Format(time.RFC3339),
		}},
	}
}
