package notify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"newsdigest/internal/model"
)

// maxMessageLen is the Telegram limit for a single text message.
const maxMessageLen = 4096

// topStories is how many stories a digest message lists.
const topStories = 5

// FormatDigest renders a run result as a notification message.
func FormatDigest(r *model.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "News digest for %s\n\n", r.Date)
	if r.Digest.TLDR != "" {
		fmt.Fprintf(&b, "TL;DR: %s\n", r.Digest.TLDR)
	}

	if len(r.Stories) > 0 {
		b.WriteString("\nTop stories:\n")
		for i, s := range r.Stories {
			if i == topStories {
				break
			}
			fmt.Fprintf(&b, "\n%d. [%d/10] %s\n   %s | %s\n   %s\n", i+1, s.RelevanceScore, s.Title, s.Category, s.Source, s.URL)
		}
	}

	if len(r.Actions) > 0 {
		b.WriteString("\nActions:\n")
		for _, a := range r.Actions {
			fmt.Fprintf(&b, "- %s (%s): %s", a.Type, a.Priority, a.Title)
			if a.TimeEstimate != "" {
				fmt.Fprintf(&b, " [%s]", a.TimeEstimate)
			}
			b.WriteString("\n")
		}
	}

	if r.Digest.BottomLine != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Digest.BottomLine)
	}
	return truncate(strings.TrimRight(b.String(), "\n"), maxMessageLen)
}

// FormatFailure renders a failed run.
func FormatFailure(date string, err error) string {
	return truncate(fmt.Sprintf("News digest for %s failed:\n%v", date, err), maxMessageLen)
}

// FormatRuns renders journal entries, newest first.
func FormatRuns(runs []model.Run) string {
	if len(runs) == 0 {
		return "No runs recorded yet."
	}
	var b strings.Builder
	b.WriteString("Recent runs:\n")
	for _, r := range runs {
		fmt.Fprintf(&b, "\n%s [%s] %s", r.Date, r.Status, r.StartedAt.Format("15:04 MST"))
		if r.Status == model.RunSucceeded {
			fmt.Fprintf(&b, "\n   %d fetched, %d unique, %d stories, %d actions", r.ItemsFetched, r.ItemsUnique, r.Stories, r.Actions)
		}
		if r.Error != "" {
			fmt.Fprintf(&b, "\n   error: %s", r.Error)
		}
	}
	return truncate(b.String(), maxMessageLen)
}

// FormatArchive renders the archive index.
func FormatArchive(entries []model.ArchiveEntry) string {
	if len(entries) == 0 {
		return "The archive is empty."
	}
	var b strings.Builder
	b.WriteString("Archive:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n%s  %s", e.DisplayDate, e.File)
	}
	return truncate(b.String(), maxMessageLen)
}

// truncate cuts s to at most n bytes on a rune boundary, marking the cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	const marker = "\n..."
	cut := n - len(marker)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + marker
}
