package workspace

import (
	"context"
	"sync"

	"github.com/aieducate/livesession/domain/repositories"
)

// MockInitializer is an in-memory WorkspaceInitializer for tests and local
// development without the collaborator backend.
type MockInitializer struct {
	mu     sync.Mutex
	calls  int
	Result *repositories.WorkspaceInitialization
	Err    error
}

var _ repositories.WorkspaceInitializer = (*MockInitializer)(nil)

func NewMockInitializer() *MockInitializer {
	return &MockInitializer{}
}

// InitializeWorkspace implements repositories.WorkspaceInitializer
func (m *MockInitializer) InitializeWorkspace(ctx context.Context, studySessionID, userID string) (*repositories.WorkspaceInitialization, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &repositories.WorkspaceInitialization{
		StudySessionID: studySessionID,
		MaterialID:     "mock-material",
		CacheStatus:    "exists",
		InitialMessage: &repositories.InitialMessage{
			Text: "Welcome back! Ready to continue where we left off?",
		},
	}, nil
}

// Calls reports how many times InitializeWorkspace was invoked
func (m *MockInitializer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
