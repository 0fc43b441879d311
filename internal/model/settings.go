package model

import "time"

// Settings holds the user configuration kept in the store. The pipeline treats
// it as read-only input per cycle; only the API surface writes it.
type Settings struct {
	Feeds                []string `json:"feeds"`
	Interval             int      `json:"interval" validate:"omitempty,min=1,max=1440"`
	CRMToken             string   `json:"crmToken"`
	OpenAIKey            string   `json:"openaiKey"`
	NotificationsEnabled bool     `json:"notificationsEnabled"`
	SoundEnabled         bool     `json:"soundEnabled"`
	SummariesEnabled     bool     `json:"enableSummaries"`
	SnoozeUntil          int64    `json:"snoozeUntil"` // unix milliseconds, 0 = not snoozed
	Theme                string   `json:"theme" validate:"omitempty,oneof=light dark"`
	LastTab              string   `json:"lastTab" validate:"omitempty,oneof=recent saved history"`
}

// DefaultSettings mirrors the defaults applied when nothing has been saved yet.
func DefaultSettings() Settings {
	return Settings{
		Interval:             1,
		NotificationsEnabled: true,
		SoundEnabled:         true,
		Theme:                "light",
		LastTab:              "recent",
	}
}

// Snoozed reports whether polling is paused at the given instant.
func (s Settings) Snoozed(now time.Time) bool {
	return s.SnoozeUntil > 0 && now.UnixMilli() < s.SnoozeUntil
}
