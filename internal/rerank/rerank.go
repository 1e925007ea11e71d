// Package rerank bounds the item set sent to the relevance collaborator.
// When more items are collected than the context allows, items closest to the
// reader profile in embedding space are kept.
package rerank

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"newsdigest/internal/model"
)

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string, query bool) ([][]float32, error)
}

// Prefilter keeps at most limit items.
type Prefilter struct {
	embedder Embedder
	limit    int
	log      *slog.Logger
}

// New creates a Prefilter. A nil embedder keeps the first limit items in merge order.
func New(embedder Embedder, limit int, log *slog.Logger) *Prefilter {
	return &Prefilter{embedder: embedder, limit: limit, log: log}
}

// Select returns at most limit items, preserving their relative order.
func (p *Prefilter) Select(ctx context.Context, items []model.NormalizedItem, profileText string) []model.NormalizedItem {
	if p.limit <= 0 || len(items) <= p.limit {
		return items
	}
	if p.embedder == nil {
		p.log.Info("context bound exceeded, truncating", "items", len(items), "limit", p.limit)
		return items[:p.limit]
	}

	scores, err := p.score(ctx, items, profileText)
	if err != nil {
		p.log.Warn("embedding pre-rank failed, truncating", "error", err, "items", len(items), "limit", p.limit)
		return items[:p.limit]
	}

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	keep := idx[:p.limit]
	sort.Ints(keep)

	out := make([]model.NormalizedItem, 0, p.limit)
	for _, i := range keep {
		out = append(out, items[i])
	}
	p.log.Info("items pre-ranked by profile similarity", "items", len(items), "kept", len(out))
	return out
}

func (p *Prefilter) score(ctx context.Context, items []model.NormalizedItem, profileText string) ([]float64, error) {
	query, err := p.embedder.Embed(ctx, []string{profileText}, true)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Title + "\n" + item.Summary
	}
	docs, err := p.embedder.Embed(ctx, texts, false)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(docs))
	for i, d := range docs {
		scores[i] = Cosine(query[0], d)
	}
	return scores, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is empty or zero.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
