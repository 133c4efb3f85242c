package assessment

import (
	"context"

	"github.com/aieducate/livesession/domain/repositories"
)

// MockService is an in-memory AssessmentService for tests and local
// development without the collaborator backend.
type MockService struct {
	QuestionList []repositories.Question
	Result       *repositories.AssessmentResult
	Err          error
}

var _ repositories.AssessmentService = (*MockService)(nil)

func NewMockService() *MockService {
	return &MockService{}
}

// GenerateQuestions implements repositories.AssessmentService
func (m *MockService) GenerateQuestions(ctx context.Context, materialID, studySessionID, userID string) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.QuestionList), nil
}

// StartAssessment implements repositories.AssessmentService
func (m *MockService) StartAssessment(ctx context.Context, materialID, userID string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return "mock-assessment", nil
}

// Questions implements repositories.AssessmentService
func (m *MockService) Questions(ctx context.Context, materialID string) ([]repositories.Question, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.QuestionList, nil
}

// SaveAnswer implements repositories.AssessmentService
func (m *MockService) SaveAnswer(ctx context.Context, assessmentID, questionID, answer string) error {
	return m.Err
}

// MarkAssessment implements repositories.AssessmentService
func (m *MockService) MarkAssessment(ctx context.Context, assessmentID string) (*repositories.AssessmentResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &repositories.AssessmentResult{
		AssessmentID:   assessmentID,
		Score:          0,
		TotalQuestions: len(m.QuestionList),
	}, nil
}
