package relevance

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"
)

// ErrContractViolation marks a collaborator response that is unparseable or fails validation.
var ErrContractViolation = errors.New("collaborator contract violation")

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...))
}

var codeFence = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")

// StripCodeFence returns the contents of the first markdown code fence in s, or s trimmed.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

type wireDigest struct {
	TLDR       string   `json:"tldr"`
	Patterns   []string `json:"patterns"`
	Signals    []string `json:"signals"`
	BottomLine string   `json:"bottom_line"`
}

type wireStory struct {
	Title          string      `json:"title"`
	URL            string      `json:"url"`
	Summary        string      `json:"summary"`
	RelevanceScore json.Number `json:"relevance_score"`
	WhyRelevant    string      `json:"why_relevant"`
	Category       string      `json:"category"`
	Source         string      `json:"source"`
	Date           string      `json:"date"`
}

type wireAction struct {
	Type           string        `json:"type"`
	Priority       string        `json:"priority"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	WhyNow         string        `json:"why_now"`
	TimeEstimate   string        `json:"time_estimate"`
	RelatedStories []json.Number `json:"related_stories"`
}

type wireResponse struct {
	Digest  *wireDigest   `json:"smart_digest"`
	Stories *[]wireStory  `json:"stories"`
	Actions *[]wireAction `json:"actions"`
}

// parseResponse decodes the collaborator text. All top-level keys are required.
func parseResponse(raw string) (*wireResponse, error) {
	text := StripCodeFence(raw)
	if text == "" {
		return nil, violation("empty response")
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var resp wireResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, violation("parse response json: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, violation("trailing data after response object")
	}

	switch {
	case resp.Digest == nil:
		return nil, violation("missing smart_digest")
	case resp.Stories == nil:
		return nil, violation("missing stories")
	case resp.Actions == nil:
		return nil, violation("missing actions")
	}
	return &resp, nil
}

// integer converts n to an int, rejecting fractional values.
func integer(n json.Number) (int, error) {
	if n == "" {
		return 0, errors.New("missing number")
	}
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", n)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not an integer: %s", n)
	}
	return int(f), nil
}
