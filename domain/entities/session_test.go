package entities

import (
	"testing"
)

func TestNewLiveSession(t *testing.T) {
	session := NewLiveSession("user-7", "study-42")

	if session.ID == "" {
		t.Error("Expected session ID to be generated")
	}

	if session.UserID != "user-7" {
		t.Errorf("Expected user ID user-7, got %s", session.UserID)
	}

	if session.Status != SessionStatusPreparing {
		t.Errorf("Expected status %s, got %s", SessionStatusPreparing, session.Status)
	}

	if session.Connection != ConnectionStatusDisconnected {
		t.Errorf("Expected connection %s, got %s", ConnectionStatusDisconnected, session.Connection)
	}

	if session.IsActive() {
		t.Error("New session should not be active")
	}
}

func TestLiveSessionLifecycle(t *testing.T) {
	session := NewLiveSession("user-7", "study-42")

	session.MarkConnected()
	if !session.IsActive() {
		t.Error("Session should be active after MarkConnected")
	}
	if session.ConnectedAt == nil {
		t.Error("Expected ConnectedAt to be set")
	}
	firstConnected := *session.ConnectedAt

	// Reconnecting keeps the original timestamp
	session.MarkConnected()
	if !session.ConnectedAt.Equal(firstConnected) {
		t.Error("Expected ConnectedAt to keep first connection time")
	}

	session.MarkEnded()
	if session.IsActive() {
		t.Error("Session should not be active after MarkEnded")
	}
	if session.Status != SessionStatusEnded {
		t.Errorf("Expected status %s, got %s", SessionStatusEnded, session.Status)
	}
	if session.EndedAt == nil {
		t.Error("Expected EndedAt to be set")
	}
}

func TestLiveSessionMarkFailed(t *testing.T) {
	session := NewLiveSession("user-7", "study-42")
	session.MarkFailed()

	if session.Status != SessionStatusFailed {
		t.Errorf("Expected status %s, got %s", SessionStatusFailed, session.Status)
	}
	if session.IsActive() {
		t.Error("Failed session should not be active")
	}
}
