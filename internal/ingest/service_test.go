package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/msi-products/capwatch/internal/config"
	"github.com/msi-products/capwatch/internal/crm"
	"github.com/msi-products/capwatch/internal/model"
	"github.com/msi-products/capwatch/internal/store"
	"github.com/msi-products/capwatch/internal/summary"
	"github.com/msi-products/capwatch/internal/views"
)

type feedEntry struct {
	ID        int64      `json:"id"`
	Subject   string     `json:"subject,omitempty"`
	Content   string     `json:"content,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// testHarness wires a service against a stub CRM server and the memory store.
type testHarness struct {
	service *Service
	store   *store.MemoryStore
	entries *[]feedEntry
}

func newHarness(t *testing.T, maxEntries int) *testHarness {
	t.Helper()

	feed := &[]feedEntry{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"entries": *feed})
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		CRMBaseURL: "https://example.capsulecrm.com",
		MaxEntries: maxEntries,
	}

	st := store.NewMemoryStore()
	settings := model.DefaultSettings()
	settings.CRMToken = "token"
	if err := st.SetSettings(context.Background(), settings); err != nil {
		t.Fatalf("failed to seed settings: %v", err)
	}

	crmClient := crm.NewClient(srv.URL, cfg.CRMBaseURL, 5*time.Second)
	// Summarization stays disabled in these tests; the endpoint is never hit.
	summarizer := summary.NewSummarizer("http://127.0.0.1:1", "test-model", 0.3, time.Second)

	svc, err := NewService(context.Background(), cfg, st, crmClient, summarizer)
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	return &testHarness{service: svc, store: st, entries: feed}
}

func (h *testHarness) push(e feedEntry) {
	*h.entries = append(*h.entries, e)
}

func ts(offset time.Duration) *time.Time {
	t := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).Add(offset)
	return &t
}

func TestCycleEndToEnd(t *testing.T) {
	h := newHarness(t, 100)
	h.push(feedEntry{ID: 42, Subject: "Hello", Content: "line1\nline2", CreatedAt: ts(0)})

	if err := h.service.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}

	entries, _ := h.store.GetEntries(context.Background())
	if len(entries) != 1 {
		t.Fatalf("expected 1 persisted entry, got %d", len(entries))
	}

	e := entries[0]
	if e.Guid != "42" || e.Title != "Hello" || e.Snippet != "line1" {
		t.Errorf("unexpected persisted entry: %+v", e)
	}
	if e.Summary != "" {
		t.Errorf("expected no summary with summarization disabled, got %q", e.Summary)
	}
	if e.DisplaySummary() != "line1" {
		t.Errorf("expected snippet fallback, got %q", e.DisplaySummary())
	}

	if got := views.Badge(entries); got != 1 {
		t.Errorf("expected badge 1, got %d", got)
	}

	notifications, _ := h.store.Notifications(context.Background())
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
	if len(notifications[0].Items) != 1 || notifications[0].Items[0] != "Hello" {
		t.Errorf("unexpected notification: %+v", notifications[0])
	}
}

func TestCycleDedupIdempotence(t *testing.T) {
	h := newHarness(t, 100)
	h.push(feedEntry{ID: 1, Subject: "Once", CreatedAt: ts(0)})

	for i := 0; i < 2; i++ {
		if err := h.service.RunCycle(context.Background()); err != nil {
			t.Fatalf("cycle %d failed: %v", i, err)
		}
	}

	entries, _ := h.store.GetEntries(context.Background())
	if len(entries) != 1 {
		t.Errorf("expected exactly one ingested copy, got %d", len(entries))
	}

	notifications, _ := h.store.Notifications(context.Background())
	if len(notifications) != 1 {
		t.Errorf("expected one notification across both cycles, got %d", len(notifications))
	}
}

func TestSeenSetHydratedFromStore(t *testing.T) {
	st := store.NewMemoryStore()
	existing := model.Entry{Guid: "9", Title: "Old", Date: time.Now()}
	if err := st.SetEntries(context.Background(), []model.Entry{existing}); err != nil {
		t.Fatal(err)
	}

	svc, err := NewService(context.Background(), &config.Config{MaxEntries: 100}, st, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	fresh := svc.FilterNew([]model.Entry{
		{Guid: "9", Title: "Old again"},
		{Guid: "10", Title: "New"},
	})
	if len(fresh) != 1 || fresh[0].Guid != "10" {
		t.Errorf("expected only unseen guid 10, got %+v", fresh)
	}

	// Same guid never returned twice within one process lifetime.
	if again := svc.FilterNew([]model.Entry{{Guid: "10"}}); len(again) != 0 {
		t.Errorf("guid returned twice: %+v", again)
	}
}

func TestCycleRetentionCap(t *testing.T) {
	h := newHarness(t, 5)
	for i := 0; i < 8; i++ {
		h.push(feedEntry{ID: int64(i + 1), Subject: fmt.Sprintf("E%d", i+1), CreatedAt: ts(time.Duration(i) * time.Minute)})
	}

	if err := h.service.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	entries, _ := h.store.GetEntries(context.Background())
	if len(entries) != 5 {
		t.Errorf("expected cap of 5, got %d", len(entries))
	}
}

func TestCycleFetchFailureAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := &config.Config{CRMBaseURL: "https://example.capsulecrm.com", MaxEntries: 100}
	st := store.NewMemoryStore()
	settings := model.DefaultSettings()
	settings.CRMToken = "token"
	st.SetSettings(context.Background(), settings)

	svc, err := NewService(context.Background(), cfg, st,
		crm.NewClient(srv.URL, cfg.CRMBaseURL, time.Second),
		summary.NewSummarizer("http://127.0.0.1:1", "m", 0.3, time.Second))
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.RunCycle(context.Background()); err == nil {
		t.Fatal("expected error when fetch fails")
	}

	entries, _ := st.GetEntries(context.Background())
	if len(entries) != 0 {
		t.Errorf("expected collection untouched after failed fetch, got %d entries", len(entries))
	}
}

func TestCycleNoTokenIsNoop(t *testing.T) {
	h := newHarness(t, 100)
	settings := model.DefaultSettings()
	h.store.SetSettings(context.Background(), settings)
	h.push(feedEntry{ID: 1, Subject: "Ignored", CreatedAt: ts(0)})

	if err := h.service.RunCycle(context.Background()); err != nil {
		t.Fatalf("expected missing token to be a no-op, got %v", err)
	}

	entries, _ := h.store.GetEntries(context.Background())
	if len(entries) != 0 {
		t.Errorf("expected nothing ingested without a token, got %d", len(entries))
	}
}

func TestNotificationOverflow(t *testing.T) {
	h := newHarness(t, 100)
	for i := 0; i < 7; i++ {
		h.push(feedEntry{ID: int64(i + 1), Subject: fmt.Sprintf("N%d", i+1), CreatedAt: ts(time.Duration(i) * time.Minute)})
	}

	if err := h.service.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	notifications, _ := h.store.Notifications(context.Background())
	if len(notifications) != 1 {
		t.Fatalf("expected one aggregated notification, got %d", len(notifications))
	}
	n := notifications[0]
	if len(n.Items) != model.MaxNotificationItems {
		t.Errorf("expected %d listed items, got %d", model.MaxNotificationItems, len(n.Items))
	}
	if n.Overflow != 2 {
		t.Errorf("expected overflow of 2, got %d", n.Overflow)
	}
}

func TestSetFlagsAndMarkRecentRead(t *testing.T) {
	h := newHarness(t, 100)
	h.push(feedEntry{ID: 1, Subject: "A", CreatedAt: ts(0)})
	h.push(feedEntry{ID: 2, Subject: "B", CreatedAt: ts(time.Minute)})
	if err := h.service.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	yes := true
	if err := h.service.SetFlags(context.Background(), "1", FlagPatch{Saved: &yes, Read: &yes}); err != nil {
		t.Fatalf("SetFlags failed: %v", err)
	}

	entries, _ := h.store.GetEntries(context.Background())
	for _, e := range entries {
		if e.Guid == "1" && (!e.Saved || !e.Read) {
			t.Errorf("flags not applied: %+v", e)
		}
	}

	// Collection comes back sorted by date descending after a flag write.
	for i := 1; i < len(entries); i++ {
		if entries[i].Date.After(entries[i-1].Date) {
			t.Error("collection not sorted by date descending after flag update")
		}
	}

	if err := h.service.SetFlags(context.Background(), "missing", FlagPatch{Read: &yes}); err == nil {
		t.Error("expected error for unknown guid")
	}

	if err := h.service.MarkRecentRead(context.Background()); err != nil {
		t.Fatalf("MarkRecentRead failed: %v", err)
	}
	entries, _ = h.store.GetEntries(context.Background())
	for _, e := range entries {
		if !e.Read {
			t.Errorf("expected all recent entries read, found %+v", e)
		}
	}
}

func TestResolveClickThrough(t *testing.T) {
	h := newHarness(t, 100)
	h.push(feedEntry{ID: 5, Subject: "Linked", CreatedAt: ts(0)})
	if err := h.service.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	link, err := h.service.Resolve(context.Background(), "5")
	if err != nil {
		t.Fatal(err)
	}
	if link != "https://example.capsulecrm.com" {
		t.Errorf("expected base URL for entry without party, got %q", link)
	}

	link, err = h.service.Resolve(context.Background(), "unknown")
	if err != nil {
		t.Fatal(err)
	}
	if link != "https://example.capsulecrm.com" {
		t.Errorf("expected base URL fallback for unknown guid, got %q", link)
	}
}
