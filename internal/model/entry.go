package model

import (
	"sort"
	"time"
)

// Entry represents one ingested unit of CRM activity
type Entry struct {
	Guid    string    `json:"guid"`
	Title   string    `json:"title"`
	Date    time.Time `json:"date"`
	Link    string    `json:"link"`
	Author  string    `json:"author"`
	Snippet string    `json:"snippet"`
	Body    string    `json:"body"`
	Summary string    `json:"summary,omitempty"`
	Read    bool      `json:"read"`
	Saved   bool      `json:"saved"`
	Deleted bool      `json:"deleted"`
}

// DisplaySummary returns the AI summary when present, the snippet otherwise
func (e Entry) DisplaySummary() string {
	if e.Summary != "" {
		return e.Summary
	}
	return e.Snippet
}

// SortByDateDesc orders entries newest first, in place
func SortByDateDesc(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date)
	})
}
