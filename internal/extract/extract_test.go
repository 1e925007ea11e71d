package extract

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"newsdigest/internal/model"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Agents in production</title>
<meta name="description" content="How teams run coding agents in production today.">
</head><body>
<article><h1>Agents in production</h1>
<p>Coding agents have moved from demos to daily use across many engineering teams this year.</p>
<p>This article covers how teams review agent output, how they budget tokens, and what broke.</p>
</article></body></html>`

type pageTransport struct {
	mu    sync.Mutex
	pages map[string]string
	hits  []string
}

func (p *pageTransport) Do(req *http.Request) (*http.Response, error) {
	p.mu.Lock()
	p.hits = append(p.hits, req.URL.String())
	p.mu.Unlock()

	body, ok := p.pages[req.URL.String()]
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader("missing"))}, nil
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}, nil
}

func TestFill(t *testing.T) {
	transport := &pageTransport{pages: map[string]string{"https://blog.example.com/agents": articleHTML}}
	e := New(transport, Options{Workers: 2}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	items := []model.NormalizedItem{
		{Title: "Has summary", URL: "https://blog.example.com/kept", Summary: "Already here"},
		{Title: "Agents", URL: "https://blog.example.com/agents"},
		{Title: "Missing page", URL: "https://blog.example.com/gone"},
	}

	got := e.Fill(context.Background(), items)

	want := []model.NormalizedItem{
		{Title: "Has summary", URL: "https://blog.example.com/kept", Summary: "Already here"},
		{Title: "Agents", URL: "https://blog.example.com/agents", Summary: "How teams run coding agents in production today."},
		{Title: "Missing page", URL: "https://blog.example.com/gone"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Fill() mismatch (-want +got):\n%s", diff)
	}
	if items[1].Summary != "" {
		t.Error("input slice mutated")
	}
	for _, hit := range transport.hits {
		if hit == "https://blog.example.com/kept" {
			t.Error("fetched an item that already had a summary")
		}
	}
}

func TestSummaryTruncates(t *testing.T) {
	transport := &pageTransport{pages: map[string]string{"https://blog.example.com/agents": articleHTML}}
	e := New(transport, Options{MaxChars: 10}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	got, err := e.Summary(context.Background(), "https://blog.example.com/agents")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if got != "How teams " {
		t.Errorf("Summary() = %q, want %q", got, "How teams ")
	}
}
