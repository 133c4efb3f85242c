package transcript

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aieducate/livesession/domain/entities"
)

// Store accumulates the finalized transcript of a session. Interim
// transcription updates are discarded; only entries the agent marked final
// are recorded, in arrival order.
type Store struct {
	logger *zap.Logger
	clk    clock.Clock

	mu      sync.Mutex
	entries []entities.TranscriptEntry
}

func NewStore(clk clock.Clock, logger *zap.Logger) *Store {
	return &Store{logger: logger, clk: clk}
}

// HandleEvent records the event if it is a finalized transcription with text.
// Every other event kind is ignored.
func (s *Store) HandleEvent(ev entities.AgentEvent) {
	if ev.Kind != entities.EventTranscription || !ev.Final || ev.Text == "" {
		return
	}
	s.Append(ev.Role, ev.Text)
}

// Append adds one finalized line to the transcript
func (s *Store) Append(role entities.Role, text string) entities.TranscriptEntry {
	entry := entities.TranscriptEntry{
		ID:        uuid.New().String(),
		Role:      role,
		Text:      text,
		Timestamp: s.clk.Now(),
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	count := len(s.entries)
	s.mu.Unlock()

	s.logger.Debug("Transcript entry recorded",
		zap.String("role", string(role)),
		zap.Int("entries", count))
	return entry
}

// Entries returns a copy of the transcript in arrival order
func (s *Store) Entries() []entities.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.TranscriptEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of recorded entries
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear discards the transcript, e.g. when a new session begins
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// Since returns entries recorded at or after the given time
func (s *Store) Since(t time.Time) []entities.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.TranscriptEntry
	for _, e := range s.entries {
		if !e.Timestamp.Before(t) {
			out = append(out, e)
		}
	}
	return out
}
