package views

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/msi-products/capwatch/internal/model"
)

// Window sizes for the popup tabs. Recent counts distinct threads, history
// counts raw entries.
const (
	RecentWindow  = 10
	HistoryWindow = 50
)

var subjectPrefix = regexp.MustCompile(`(?i)^(re|fwd?):\s*`)

// NormalizeSubject strips any leading chain of Re:/Fwd: markers and trims the
// remainder. Used as the thread grouping key.
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		stripped := subjectPrefix.ReplaceAllString(s, "")
		if stripped == s {
			return strings.TrimSpace(s)
		}
		s = strings.TrimSpace(stripped)
	}
}

// Thread is a group of entries sharing a normalized subject, collapsed to its
// most recent member.
type Thread struct {
	Subject        string      `json:"subject"`
	Representative model.Entry `json:"representative"`
	Count          int         `json:"count"`
}

// GroupThreads groups entries by normalized subject. Thread order follows the
// representative dates, newest first.
func GroupThreads(entries []model.Entry) []Thread {
	sorted := make([]model.Entry, len(entries))
	copy(sorted, entries)
	model.SortByDateDesc(sorted)

	index := make(map[string]int)
	var threads []Thread
	for _, e := range sorted {
		subject := NormalizeSubject(e.Title)
		if i, ok := index[subject]; ok {
			threads[i].Count++
			continue
		}
		index[subject] = len(threads)
		threads = append(threads, Thread{Subject: subject, Representative: e, Count: 1})
	}
	return threads
}

// Matches reports whether the entry matches a free-text search over title,
// author and body. An empty query matches everything.
func Matches(e model.Entry, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(e.Title), q) ||
		strings.Contains(strings.ToLower(e.Author), q) ||
		strings.Contains(strings.ToLower(e.Body), q)
}

// Recent returns at most 10 distinct threads of non-deleted entries, each
// representative filtered by the search query.
func Recent(entries []model.Entry, query string) []Thread {
	var live []model.Entry
	for _, e := range entries {
		if !e.Deleted {
			live = append(live, e)
		}
	}

	var out []Thread
	for _, t := range GroupThreads(live) {
		if !Matches(t.Representative, query) {
			continue
		}
		out = append(out, t)
		if len(out) == RecentWindow {
			break
		}
	}
	return out
}

// Saved returns all saved entries, ungrouped, newest first.
func Saved(entries []model.Entry, query string) []model.Entry {
	var out []model.Entry
	for _, e := range entries {
		if e.Saved && Matches(e, query) {
			out = append(out, e)
		}
	}
	model.SortByDateDesc(out)
	return out
}

// History returns the most recent 50 entries, ungrouped, deleted included.
func History(entries []model.Entry, query string) []model.Entry {
	sorted := make([]model.Entry, len(entries))
	copy(sorted, entries)
	model.SortByDateDesc(sorted)

	var out []model.Entry
	for _, e := range sorted {
		if !Matches(e, query) {
			continue
		}
		out = append(out, e)
		if len(out) == HistoryWindow {
			break
		}
	}
	return out
}

// RecentGuids returns the guids inside the recent raw window: non-deleted
// entries, newest first, capped at 10. This is the window "mark all read" and
// the badge operate on.
func RecentGuids(entries []model.Entry) []string {
	var live []model.Entry
	for _, e := range entries {
		if !e.Deleted {
			live = append(live, e)
		}
	}
	model.SortByDateDesc(live)
	if len(live) > RecentWindow {
		live = live[:RecentWindow]
	}

	guids := make([]string, 0, len(live))
	for _, e := range live {
		guids = append(guids, e.Guid)
	}
	return guids
}

// Badge counts unread entries within the recent raw window.
func Badge(entries []model.Entry) int {
	var live []model.Entry
	for _, e := range entries {
		if !e.Deleted {
			live = append(live, e)
		}
	}
	model.SortByDateDesc(live)
	if len(live) > RecentWindow {
		live = live[:RecentWindow]
	}

	count := 0
	for _, e := range live {
		if !e.Read {
			count++
		}
	}
	return count
}

// BadgeText renders the badge value; zero renders as an empty indicator.
func BadgeText(count int) string {
	if count == 0 {
		return ""
	}
	return strconv.Itoa(count)
}
