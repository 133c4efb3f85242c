package entities

import "time"

// TranscriptEntry is one settled line of the session transcript. Interim
// transcriptions are never persisted as entries.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
