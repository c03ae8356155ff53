package realtime

import "time"

// SyncEvent is broadcast after a multi-source sync finishes.
type SyncEvent struct {
	Type   string         `json:"type"` // "sync.completed"
	RunID  string         `json:"run_id"`
	Synced map[string]int `json:"synced"`
	Errors map[string]string `json:"errors,omitempty"`
	At     time.Time      `json:"at"`
}

// ViewEvent is broadcast on every recorded view.
type ViewEvent struct {
	Type       string    `json:"type"` // "view.recorded"
	Source     string    `json:"source"`
	ExternalID string    `json:"external_id"`
	At         time.Time `json:"at"`
}
