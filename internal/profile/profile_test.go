package profile

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"newsdigest/internal/model"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error
	req        *http.Request
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetch(t *testing.T) {
	tests := []struct {
		name      string
		endpoint  string
		apiKey    string
		transport *mockTransport
		want      model.UserProfile
	}{
		{
			name:      "full profile",
			endpoint:  "https://config.example.com/",
			apiKey:    "secret",
			transport: &mockTransport{statusCode: 200, body: `{"role":"Staff Engineer","projects":["rag-bot","rag-bot"," "],"learning":["Rust"],"tracking_companies":["Anthropic","anthropic"],"interests":["agents"]}`},
			want: model.UserProfile{
				Role:             "Staff Engineer",
				Projects:         []string{"rag-bot"},
				LearningTopics:   []string{"Rust"},
				TrackedCompanies: []string{"Anthropic"},
				Interests:        []string{"agents"},
			},
		},
		{
			name:      "missing role defaults",
			endpoint:  "https://config.example.com",
			apiKey:    "secret",
			transport: &mockTransport{statusCode: 200, body: `{"projects":["cli"]}`},
			want:      model.UserProfile{Role: "Developer", Projects: []string{"cli"}},
		},
		{
			name:      "not configured",
			transport: &mockTransport{statusCode: 200},
			want:      model.DefaultProfile(),
		},
		{
			name:      "server error falls back",
			endpoint:  "https://config.example.com",
			apiKey:    "secret",
			transport: &mockTransport{statusCode: 500, body: "oops"},
			want:      model.DefaultProfile(),
		},
		{
			name:      "network error falls back",
			endpoint:  "https://config.example.com",
			apiKey:    "secret",
			transport: &mockTransport{err: io.ErrUnexpectedEOF},
			want:      model.DefaultProfile(),
		},
		{
			name:      "malformed json falls back",
			endpoint:  "https://config.example.com",
			apiKey:    "secret",
			transport: &mockTransport{statusCode: 200, body: "{"},
			want:      model.DefaultProfile(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.endpoint, tt.apiKey, tt.transport, discardLogger())
			got := c.Fetch(context.Background())
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Fetch() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFetchRequest(t *testing.T) {
	transport := &mockTransport{statusCode: 200, body: `{}`}
	New("https://config.example.com/", "secret", transport, discardLogger()).Fetch(context.Background())

	if transport.req == nil {
		t.Fatal("no request sent")
	}
	if got := transport.req.URL.String(); got != "https://config.example.com/config" {
		t.Errorf("url = %q, want https://config.example.com/config", got)
	}
	if got := transport.req.Header.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization = %q, want Bearer secret", got)
	}
}

func TestSummary(t *testing.T) {
	p := model.UserProfile{
		Role:           "ML Engineer",
		Projects:       []string{"search", "agents"},
		LearningTopics: []string{"Go"},
	}
	want := "USER PROFILE:\n" +
		"- Role: ML Engineer\n" +
		"- Projects: search, agents\n" +
		"- Learning: Go\n" +
		"- Tracking Companies: None specified\n" +
		"- Interests: None specified\n"
	if diff := cmp.Diff(want, Summary(p)); diff != "" {
		t.Errorf("Summary() mismatch (-want +got):\n%s", diff)
	}
}
