package repositories

import "context"

// Question is a generated multiple-choice assessment question
type Question struct {
	ID       string   `json:"id"`
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options"`
	Concept  string   `json:"concept,omitempty"`
	Position int      `json:"position"`
}

// AssessmentResult summarizes a marked assessment
type AssessmentResult struct {
	AssessmentID   string  `json:"assessment_id"`
	Score          int     `json:"score"`
	TotalQuestions int     `json:"total_questions"`
	Percentage     float64 `json:"percentage"`
	Feedback       string  `json:"feedback,omitempty"`
}

// AssessmentService abstracts the assessment backend. Calls are opaque HTTP
// passthroughs; question generation and marking happen server-side.
type AssessmentService interface {
	GenerateQuestions(ctx context.Context, materialID, studySessionID, userID string) (int, error)
	StartAssessment(ctx context.Context, materialID, userID string) (string, error)
	Questions(ctx context.Context, materialID string) ([]Question, error)
	SaveAnswer(ctx context.Context, assessmentID, questionID, answer string) error
	MarkAssessment(ctx context.Context, assessmentID string) (*AssessmentResult, error)
}
