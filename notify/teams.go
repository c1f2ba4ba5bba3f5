package notify

import "strings"

type teamsCard struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor"`
	Summary    string         `json:"summary"`
	Sections   []teamsSection `json:"sections"`
}

type teamsSection struct {
	ActivityTitle    string      `json:"activityTitle"`
	ActivitySubtitle string      `json:"activitySubtitle"`
	Facts            []teamsFact `json:"facts"`
	Markdown         bool        `json:"markdown"`
}

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func buildTeamsCard(eventType string, data map[string]any, template string) teamsCard {
	title := EventTitle(eventType, data)

	facts := make([]teamsFact, 0, len(highlightFields))
	for _, hf := range highlightFields {
		if v := field(data, hf.key); v != "" {
			facts = append(facts, teamsFact{Name: hf.title, Value: v})
		}
	}

	return teamsCard{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: strings.TrimPrefix(EventColor(eventType), "#"),
		Summary:    title,
		Sections: []teamsSection{{
			ActivityTitle:    title,
			ActivitySubtitle: Interpolate(template, data),
			Facts:            facts,
			Markdown:         true,
		}},
	}
}
