// Package relevance scores normalized items against the reader profile by delegating
// to a text-generation collaborator and validating its structured answer.
package relevance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"newsdigest/internal/llm"
	"newsdigest/internal/model"
)

// dateLayout is the calendar date format used for run and story dates.
const dateLayout = "2006-01-02"

// ErrNoItems is returned when there is nothing to score.
var ErrNoItems = errors.New("no items to score")

// Generator is the text-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, r llm.Request) (string, error)
}

// Options bound the request and the accepted response.
type Options struct {
	MaxStories   int
	MinActions   int
	MaxActions   int
	SummaryChars int
	Location     *time.Location
	Now          func() time.Time
}

// Engine issues one scoring request per call.
type Engine struct {
	gen  Generator
	opts Options
	log  *slog.Logger
}

// New creates an Engine.
func New(gen Generator, opts Options, log *slog.Logger) *Engine {
	if opts.MaxStories <= 0 {
		opts.MaxStories = 15
	}
	if opts.MaxActions <= 0 {
		opts.MaxActions = 5
	}
	if opts.MinActions <= 0 || opts.MinActions > opts.MaxActions {
		opts.MinActions = min(3, opts.MaxActions)
	}
	if opts.SummaryChars <= 0 {
		opts.SummaryChars = 200
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{gen: gen, opts: opts, log: log}
}

// Score asks the collaborator to rank items for the profile and returns the validated result.
// Stories are sorted by relevance descending. Any contract violation is fatal.
func (e *Engine) Score(ctx context.Context, items []model.NormalizedItem, p model.UserProfile) (*model.Result, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	now := e.opts.Now().In(e.opts.Location)
	req := llm.Request{
		System:     systemInstruction,
		User:       BuildPrompt(items, p, e.opts, now),
		SchemaName: "news_digest",
		Schema:     Schema(e.opts.MaxStories, e.opts.MaxActions),
	}

	e.log.Info("requesting relevance scoring", "items", len(items), "prompt_bytes", len(req.User))
	raw, err := e.gen.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate digest: %w", err)
	}

	resp, err := parseResponse(raw)
	if err != nil {
		e.log.Error("unparseable collaborator response", "error", err, "raw", truncateRunes(raw, 500))
		return nil, err
	}

	result, err := e.validate(resp, items, now)
	if err != nil {
		return nil, err
	}
	result.Date = now.Format(dateLayout)
	result.GeneratedAt = now
	return result, nil
}

func (e *Engine) validate(resp *wireResponse, items []model.NormalizedItem, now time.Time) (*model.Result, error) {
	byURL := make(map[string]model.NormalizedItem, len(items))
	for _, item := range items {
		byURL[item.URL] = item
	}

	wireStories := *resp.Stories
	if len(wireStories) > e.opts.MaxStories {
		return nil, violation("%d stories exceeds maximum %d", len(wireStories), e.opts.MaxStories)
	}

	// remap[i] is the index in stories of the i-th story as the collaborator listed it.
	remap := make([]int, len(wireStories))
	firstByURL := make(map[string]int, len(wireStories))
	stories := make([]model.ScoredStory, 0, len(wireStories))
	for i, ws := range wireStories {
		score, err := integer(ws.RelevanceScore)
		if err != nil {
			return nil, violation("story %d relevance_score: %v", i, err)
		}
		if score < 0 || score > 10 {
			return nil, violation("story %d relevance_score %d outside [0,10]", i, score)
		}
		url := strings.TrimSpace(ws.URL)
		if url == "" {
			return nil, violation("story %d has no url", i)
		}
		if j, dup := firstByURL[url]; dup {
			e.log.Warn("duplicate story url in response, keeping first", "url", url)
			remap[i] = j
			continue
		}

		story := e.resolveStory(ws, url, score, byURL, now)
		firstByURL[url] = len(stories)
		remap[i] = len(stories)
		stories = append(stories, story)
	}

	order := make([]int, len(stories))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return stories[order[a]].RelevanceScore > stories[order[b]].RelevanceScore
	})
	position := make([]int, len(stories))
	sorted := make([]model.ScoredStory, len(stories))
	for newIdx, oldIdx := range order {
		position[oldIdx] = newIdx
		sorted[newIdx] = stories[oldIdx]
	}

	actions := make([]model.ActionItem, 0, len(*resp.Actions))
	for i, wa := range *resp.Actions {
		action, ok, err := e.resolveAction(i, wa, len(wireStories), func(idx int) int { return position[remap[idx]] })
		if err != nil {
			return nil, err
		}
		if !ok {
			e.log.Warn("dropping action with related story out of range", "action", i, "title", action.Title, "stories", len(wireStories))
			continue
		}
		actions = append(actions, action)
	}
	if len(actions) > e.opts.MaxActions {
		e.log.Warn("too many actions, truncating", "got", len(actions), "max", e.opts.MaxActions)
		actions = actions[:e.opts.MaxActions]
	}
	if len(actions) < e.opts.MinActions {
		e.log.Warn("fewer actions than requested", "got", len(actions), "min", e.opts.MinActions)
	}

	d := resp.Digest
	return &model.Result{
		Digest: model.Digest{
			TLDR:       strings.TrimSpace(d.TLDR),
			Patterns:   nonNil(d.Patterns),
			Signals:    nonNil(d.Signals),
			BottomLine: strings.TrimSpace(d.BottomLine),
		},
		Stories: sorted,
		Actions: actions,
	}, nil
}

// resolveStory fills source, category and date from the matching item when the URL is known.
func (e *Engine) resolveStory(ws wireStory, url string, score int, byURL map[string]model.NormalizedItem, now time.Time) model.ScoredStory {
	story := model.ScoredStory{
		Title:          strings.TrimSpace(ws.Title),
		URL:            url,
		Summary:        strings.TrimSpace(ws.Summary),
		RelevanceScore: score,
		WhyRelevant:    strings.TrimSpace(ws.WhyRelevant),
		Category:       model.Category(strings.TrimSpace(ws.Category)),
		Source:         strings.TrimSpace(ws.Source),
		Date:           strings.TrimSpace(ws.Date),
	}

	if item, ok := byURL[url]; ok {
		story.Category = item.Category
		story.Source = item.SourceName
		if story.Title == "" {
			story.Title = item.Title
		}
		if item.PublishedAt != nil {
			story.Date = item.PublishedAt.In(e.opts.Location).Format(dateLayout)
		}
	} else {
		e.log.Warn("story url not among collected items", "url", url)
		if !story.Category.IsValid() {
			story.Category = model.CategoryGeneral
		}
	}

	if _, err := time.Parse(dateLayout, story.Date); err != nil {
		story.Date = now.Format(dateLayout)
	}
	return story
}

// resolveAction validates one action. ok is false when a related story index is out of range,
// in which case the action is dropped rather than failing the run.
func (e *Engine) resolveAction(i int, wa wireAction, storyCount int, position func(int) int) (action model.ActionItem, ok bool, err error) {
	action = model.ActionItem{
		Type:           model.ActionType(strings.ToUpper(strings.TrimSpace(wa.Type))),
		Priority:       model.Priority(strings.ToUpper(strings.TrimSpace(wa.Priority))),
		Title:          strings.TrimSpace(wa.Title),
		Description:    strings.TrimSpace(wa.Description),
		WhyNow:         strings.TrimSpace(wa.WhyNow),
		TimeEstimate:   strings.TrimSpace(wa.TimeEstimate),
		RelatedStories: []int{},
	}
	if !action.Type.IsValid() {
		return model.ActionItem{}, false, violation("action %d has unknown type %q", i, wa.Type)
	}
	if !action.Priority.IsValid() {
		return model.ActionItem{}, false, violation("action %d has unknown priority %q", i, wa.Priority)
	}

	seen := make(map[int]struct{}, len(wa.RelatedStories))
	for _, n := range wa.RelatedStories {
		idx, err := integer(n)
		if err != nil {
			return model.ActionItem{}, false, violation("action %d related_stories: %v", i, err)
		}
		if idx < 0 || idx >= storyCount {
			return action, false, nil
		}
		mapped := position(idx)
		if _, ok := seen[mapped]; ok {
			continue
		}
		seen[mapped] = struct{}{}
		action.RelatedStories = append(action.RelatedStories, mapped)
	}
	sort.Ints(action.RelatedStories)
	return action, true, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
