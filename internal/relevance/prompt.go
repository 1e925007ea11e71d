package relevance

import (
	"fmt"
	"strings"
	"time"

	"newsdigest/internal/model"
	"newsdigest/internal/profile"
)

const systemInstruction = "You are an expert news analyst. You only respond with a single valid JSON object " +
	"matching the requested schema. Never use markdown or code fences. The entire response must be parseable JSON."

// BuildContext enumerates items for the collaborator. Summaries are cut to summaryChars runes.
func BuildContext(items []model.NormalizedItem, summaryChars int) string {
	var b strings.Builder
	b.WriteString("Here are news items collected from various sources:\n\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item.Title)
		fmt.Fprintf(&b, "   Source: %s\n", item.SourceName)
		fmt.Fprintf(&b, "   Category: %s\n", item.Category)
		fmt.Fprintf(&b, "   Link: %s\n", item.URL)
		if item.Stars > 0 {
			fmt.Fprintf(&b, "   Stars: %d\n", item.Stars)
		}
		if item.Votes > 0 {
			fmt.Fprintf(&b, "   Votes: %d\n", item.Votes)
		}
		fmt.Fprintf(&b, "   Summary: %s\n\n", truncateRunes(item.Summary, summaryChars))
	}
	return b.String()
}

// BuildPrompt assembles the user message for one scoring request.
func BuildPrompt(items []model.NormalizedItem, p model.UserProfile, opts Options, now time.Time) string {
	role := p.Role
	if role == "" {
		role = model.DefaultRole
	}

	categories := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		categories[i] = string(c)
	}

	var b strings.Builder
	b.WriteString(BuildContext(items, opts.SummaryChars))
	b.WriteString("\n")
	b.WriteString(profile.Summary(p))
	fmt.Fprintf(&b, "\nAnalyze these news items and create a personalized digest for %s.\n\n", now.Format("January 2, 2006"))
	b.WriteString("REQUIREMENTS:\n")
	fmt.Fprintf(&b, "1. Select at most %d stories, the most relevant to the user's profile.\n", opts.MaxStories)
	b.WriteString("2. Score each story with an integer relevance_score from 0 to 10. Not everything is a 10.\n")
	b.WriteString("3. why_relevant must name the user's specific projects, learning topics, companies or interests.\n")
	fmt.Fprintf(&b, "4. Generate %d to %d specific, timely actions.\n", opts.MinActions, opts.MaxActions)
	b.WriteString("5. related_stories holds zero-based positions in the stories array of your response.\n")
	b.WriteString("6. Use exact URLs and titles from the list above.\n")
	fmt.Fprintf(&b, "7. category must be one of: %s.\n", strings.Join(categories, ", "))
	b.WriteString("8. date is YYYY-MM-DD.\n")
	fmt.Fprintf(&b, "9. bottom_line is 2-3 sentences about what this means for a %s.\n", role)
	b.WriteString("10. Patterns and signals must come from the actual items, not generic observations.\n")
	return b.String()
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
