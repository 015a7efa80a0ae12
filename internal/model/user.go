package model

import "time"

// User is a snapshot of a chat user as the quota layer sees them
type User struct {
	ID        int64 `json:"id"`
	Tier      Tier  `json:"tier"`
	Limit     int   `json:"limit"`
	UsedToday int   `json:"usedToday"`
	Remaining int   `json:"remaining"`
}

// HistoryEntry records the outcome of one download
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Kind      MediaKind `json:"type"`
	Quality   string    `json:"quality,omitempty"`
	Success   bool      `json:"success"`
}
