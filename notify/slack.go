package notify

import "time"

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	TS     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func buildSlackMessage(eventType string, data map[string]any, template, channel, footer string, now time.Time) slackMessage {
	title := EventTitle(eventType, data)

	fields := make([]slackField, 0, len(highlightFields))
	for _, hf := range highlightFields {
		if v := field(data, hf.key); v != "" {
			fields = append(fields, slackField{Title: hf.title, Value: v, Short: true})
		}
	}

	return slackMessage{
		Channel: channel,
		Text:    title,
		Attachments: []slackAttachment{{
			Color:  EventColor(eventType),
			Title:  title,
			Text:   Interpolate(template, data),
			Fields: fields,
			Footer: footer,
			TS:     now.Unix(),
		}},
	}
}
