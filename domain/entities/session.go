package entities

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionStatus represents the state of the live tutoring connection
type ConnectionStatus string

const (
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
	ConnectionStatusConnecting   ConnectionStatus = "connecting"
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusError        ConnectionStatus = "error"
)

// SessionStatus represents the lifecycle status of a study session
type SessionStatus string

const (
	SessionStatusPreparing SessionStatus = "preparing"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusEnded     SessionStatus = "ended"
	SessionStatusFailed    SessionStatus = "failed"
)

// LiveSession represents one live tutoring session between the user and the
// remote agent. At most one live connection exists per session.
type LiveSession struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	StudySessionID string           `json:"study_session_id"`
	Status         SessionStatus    `json:"status"`
	Connection     ConnectionStatus `json:"connection"`
	CreatedAt      time.Time        `json:"created_at"`
	ConnectedAt    *time.Time       `json:"connected_at,omitempty"`
	EndedAt        *time.Time       `json:"ended_at,omitempty"`
}

// NewLiveSession creates a session in the preparing state
func NewLiveSession(userID, studySessionID string) *LiveSession {
	return &LiveSession{
		ID:             uuid.NewString(),
		UserID:         userID,
		StudySessionID: studySessionID,
		Status:         SessionStatusPreparing,
		Connection:     ConnectionStatusDisconnected,
		CreatedAt:      time.Now(),
	}
}

// MarkConnected records the first successful live connection
func (s *LiveSession) MarkConnected() {
	now := time.Now()
	s.Status = SessionStatusActive
	s.Connection = ConnectionStatusConnected
	if s.ConnectedAt == nil {
		s.ConnectedAt = &now
	}
}

// MarkEnded closes the session
func (s *LiveSession) MarkEnded() {
	now := time.Now()
	s.Status = SessionStatusEnded
	s.Connection = ConnectionStatusDisconnected
	s.EndedAt = &now
}

// MarkFailed records an unrecoverable bring-up failure
func (s *LiveSession) MarkFailed() {
	s.Status = SessionStatusFailed
	s.Connection = ConnectionStatusDisconnected
}

// IsActive reports whether the session can still carry live traffic
func (s *LiveSession) IsActive() bool {
	return s.Status == SessionStatusActive
}
