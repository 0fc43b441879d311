package views

import (
	"strconv"
	"testing"
	"time"

	"github.com/msi-products/capwatch/internal/model"
)

func entryAt(guid, title string, age time.Duration) model.Entry {
	return model.Entry{
		Guid:  guid,
		Title: title,
		Date:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).Add(-age),
	}
}

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Re: Re: Budget Q3", "Budget Q3"},
		{"Fwd: Budget Q3", "Budget Q3"},
		{"FW: re: FWD: Budget Q3", "Budget Q3"},
		{"Budget Q3", "Budget Q3"},
		{"  Re:   spaced  ", "spaced"},
		{"Regarding the budget", "Regarding the budget"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeSubject(tt.in); got != tt.want {
			t.Errorf("NormalizeSubject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBadge(t *testing.T) {
	t1 := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	entries := []model.Entry{
		{Guid: "a", Date: t1, Read: false, Deleted: false},
		{Guid: "b", Date: t1.Add(-time.Hour), Read: true, Deleted: false},
		{Guid: "c", Date: t1.Add(-2 * time.Hour), Read: false, Deleted: true},
	}

	if got := Badge(entries); got != 1 {
		t.Errorf("expected badge count 1, got %d", got)
	}
}

func TestBadgeWindowLimit(t *testing.T) {
	// 15 unread entries; only the 10 most recent count.
	var entries []model.Entry
	for i := 0; i < 15; i++ {
		entries = append(entries, entryAt(strconv.Itoa(i), "t", time.Duration(i)*time.Hour))
	}

	if got := Badge(entries); got != RecentWindow {
		t.Errorf("expected badge capped at %d, got %d", RecentWindow, got)
	}
}

func TestBadgeText(t *testing.T) {
	if got := BadgeText(0); got != "" {
		t.Errorf("expected empty text for zero, got %q", got)
	}
	if got := BadgeText(7); got != "7" {
		t.Errorf("expected 7, got %q", got)
	}
}

func TestGroupThreads(t *testing.T) {
	entries := []model.Entry{
		entryAt("1", "Budget Q3", 3*time.Hour),
		entryAt("2", "Re: Budget Q3", time.Hour),
		entryAt("3", "Fwd: Budget Q3", 2*time.Hour),
		entryAt("4", "Standalone", 30*time.Minute),
	}

	threads := GroupThreads(entries)
	if len(threads) != 2 {
		t.Fatalf("expected 2 threads, got %d", len(threads))
	}

	// Threads ordered by representative date desc: Standalone first.
	if threads[0].Subject != "Standalone" || threads[0].Count != 1 {
		t.Errorf("unexpected first thread: %+v", threads[0])
	}

	budget := threads[1]
	if budget.Subject != "Budget Q3" {
		t.Errorf("expected normalized subject, got %q", budget.Subject)
	}
	if budget.Count != 3 {
		t.Errorf("expected 3 members, got %d", budget.Count)
	}
	if budget.Representative.Guid != "2" {
		t.Errorf("expected most recent member as representative, got %s", budget.Representative.Guid)
	}
}

func TestRecentThreadsWindowAndFilters(t *testing.T) {
	var entries []model.Entry
	for i := 0; i < 15; i++ {
		entries = append(entries, entryAt(strconv.Itoa(i), "Subject "+strconv.Itoa(i), time.Duration(i)*time.Hour))
	}
	entries[0].Deleted = true

	threads := Recent(entries, "")
	if len(threads) != RecentWindow {
		t.Fatalf("expected %d threads, got %d", RecentWindow, len(threads))
	}
	for _, th := range threads {
		if th.Representative.Deleted {
			t.Errorf("deleted entry surfaced in recent view: %+v", th.Representative)
		}
	}

	// Free-text filter applies to the representatives.
	filtered := Recent(entries, "subject 3")
	if len(filtered) != 1 || filtered[0].Representative.Guid != "3" {
		t.Errorf("unexpected filtered threads: %+v", filtered)
	}
}

func TestSavedAndHistoryViews(t *testing.T) {
	var entries []model.Entry
	for i := 0; i < 60; i++ {
		e := entryAt(strconv.Itoa(i), "Entry "+strconv.Itoa(i), time.Duration(i)*time.Minute)
		e.Saved = i%20 == 0
		entries = append(entries, e)
	}

	saved := Saved(entries, "")
	if len(saved) != 3 {
		t.Fatalf("expected 3 saved entries, got %d", len(saved))
	}
	for i := 1; i < len(saved); i++ {
		if saved[i].Date.After(saved[i-1].Date) {
			t.Error("saved view not sorted by date descending")
		}
	}

	history := History(entries, "")
	if len(history) != HistoryWindow {
		t.Fatalf("expected history window of %d, got %d", HistoryWindow, len(history))
	}
	if history[0].Guid != "0" {
		t.Errorf("expected most recent entry first, got %s", history[0].Guid)
	}
}

func TestMatches(t *testing.T) {
	e := model.Entry{Title: "Quarterly Budget", Author: "Ana", Body: "see the attached sheet"}

	if !Matches(e, "") {
		t.Error("empty query must match")
	}
	if !Matches(e, "budget") || !Matches(e, "ANA") || !Matches(e, "attached") {
		t.Error("expected case-insensitive match on title/author/body")
	}
	if Matches(e, "missing") {
		t.Error("unexpected match")
	}
}
