package relevance

import "newsdigest/internal/model"

// Schema returns the JSON schema declared to the collaborator.
func Schema(maxStories, maxActions int) map[string]any {
	categories := make([]any, len(model.Categories))
	for i, c := range model.Categories {
		categories[i] = string(c)
	}

	str := map[string]any{"type": "string"}
	strArray := map[string]any{"type": "array", "items": str}

	return map[string]any{
		"type":     "object",
		"required": []any{"smart_digest", "stories", "actions"},
		"properties": map[string]any{
			"smart_digest": map[string]any{
				"type":     "object",
				"required": []any{"tldr", "patterns", "signals", "bottom_line"},
				"properties": map[string]any{
					"tldr":        str,
					"patterns":    strArray,
					"signals":     strArray,
					"bottom_line": str,
				},
			},
			"stories": map[string]any{
				"type":     "array",
				"maxItems": maxStories,
				"items": map[string]any{
					"type":     "object",
					"required": []any{"title", "url", "summary", "relevance_score", "why_relevant", "category", "source", "date"},
					"properties": map[string]any{
						"title":           str,
						"url":             str,
						"summary":         str,
						"relevance_score": map[string]any{"type": "integer", "minimum": 0, "maximum": 10},
						"why_relevant":    str,
						"category":        map[string]any{"type": "string", "enum": categories},
						"source":          str,
						"date":            str,
					},
				},
			},
			"actions": map[string]any{
				"type":     "array",
				"maxItems": maxActions,
				"items": map[string]any{
					"type":     "object",
					"required": []any{"type", "priority", "title", "description", "why_now", "time_estimate", "related_stories"},
					"properties": map[string]any{
						"type": map[string]any{
							"type": "string",
							"enum": []any{
								string(model.ActionOpportunity), string(model.ActionLearn), string(model.ActionBuild),
								string(model.ActionNetwork), string(model.ActionWatch),
							},
						},
						"priority": map[string]any{
							"type": "string",
							"enum": []any{string(model.PriorityHigh), string(model.PriorityMedium), string(model.PriorityLow)},
						},
						"title":           str,
						"description":     str,
						"why_now":         str,
						"time_estimate":   str,
						"related_stories": map[string]any{"type": "array", "items": map[string]any{"type": "integer", "minimum": 0}},
					},
				},
			},
		},
	}
}
