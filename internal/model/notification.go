package model

import "time"

// MaxNotificationItems bounds how many titles a single aggregated
// notification lists; anything beyond is folded into Overflow.
const MaxNotificationItems = 5

// Notification is the aggregated per-cycle record surfaced to consumers.
type Notification struct {
	Title     string    `json:"title"`
	Items     []string  `json:"items"`
	Overflow  int       `json:"overflow"`
	Sound     bool      `json:"sound"`
	CreatedAt time.Time `json:"createdAt"`
}
