package summary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/msi-products/capwatch/internal/model"
)

func chatReply(content string) string {
	body := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	data, _ := json.Marshal(body)
	return string(data)
}

func batch(n int) []model.Entry {
	entries := make([]model.Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, model.Entry{Guid: "g", Body: "b"})
	}
	return entries
}

func TestSummarizeDisabledPaths(t *testing.T) {
	s := NewSummarizer("http://127.0.0.1:1", "test-model", 0.3, time.Second)

	if got := s.Summarize(context.Background(), false, "key", batch(1)); len(got) != 0 {
		t.Errorf("expected empty map when disabled, got %v", got)
	}
	if got := s.Summarize(context.Background(), true, "", batch(1)); len(got) != 0 {
		t.Errorf("expected empty map without credential, got %v", got)
	}
	if got := s.Summarize(context.Background(), true, "key", nil); len(got) != 0 {
		t.Errorf("expected empty map for empty batch, got %v", got)
	}
}

func TestSummarizeTransportFailure(t *testing.T) {
	// Nothing listens on this port; the transport error must degrade to an
	// empty map.
	s := NewSummarizer("http://127.0.0.1:1", "test-model", 0.3, time.Second)
	if got := s.Summarize(context.Background(), true, "key", batch(1)); len(got) != 0 {
		t.Errorf("expected empty map on transport failure, got %v", got)
	}
}

func TestSummarizeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewSummarizer(srv.URL, "test-model", 0.3, time.Second)
	if got := s.Summarize(context.Background(), true, "key", batch(1)); len(got) != 0 {
		t.Errorf("expected empty map on 429, got %v", got)
	}
}

func TestSummarizeNotJSONContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatReply("not json")))
	}))
	defer srv.Close()

	s := NewSummarizer(srv.URL, "test-model", 0.3, time.Second)
	if got := s.Summarize(context.Background(), true, "key", batch(1)); len(got) != 0 {
		t.Errorf("expected empty map for unparseable content, got %v", got)
	}
}

func TestSummarizeBatchRequest(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatReply("```json\n[{\"guid\":\"1\",\"summary\":\"short one\"},{\"guid\":\"2\",\"summary\":\"short two\"}]\n```")))
	}))
	defer srv.Close()

	entries := []model.Entry{
		{Guid: "1", Body: "first body"},
		{Guid: "2", Body: "second body"},
	}

	s := NewSummarizer(srv.URL, "test-model", 0.3, time.Second)
	got := s.Summarize(context.Background(), true, "key", entries)

	if got["1"] != "short one" || got["2"] != "short two" {
		t.Errorf("unexpected summaries: %v", got)
	}

	if captured.Model != "test-model" {
		t.Errorf("expected model test-model, got %q", captured.Model)
	}
	if captured.MaxTokens != tokensPerEntry*2 {
		t.Errorf("expected token budget proportional to batch size, got %d", captured.MaxTokens)
	}
	if captured.Temperature != 0.3 {
		t.Errorf("expected fixed temperature, got %v", captured.Temperature)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("expected system + user message, got %d", len(captured.Messages))
	}
	if !strings.Contains(captured.Messages[1].Content, `"guid":"1"`) ||
		!strings.Contains(captured.Messages[1].Content, `"body":"second body"`) {
		t.Errorf("expected batch payload embedded in user message: %s", captured.Messages[1].Content)
	}
}
