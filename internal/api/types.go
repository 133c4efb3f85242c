package api

import (
	"github.com/aieducate/livesession/domain/entities"
	"github.com/aieducate/livesession/domain/repositories"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// StartSessionRequest starts a live session for a study session
type StartSessionRequest struct {
	StudySessionID string `json:"study_session_id"`
}

// SessionResponse wraps the session state
type SessionResponse struct {
	Session *entities.LiveSession `json:"session"`
}

// SendTextRequest carries one typed user message
type SendTextRequest struct {
	Text string `json:"text"`
}

// RecordingResponse reports the microphone state
type RecordingResponse struct {
	Recording bool `json:"recording"`
}

// ScreenShareResponse reports the screen sharing state
type ScreenShareResponse struct {
	Sharing bool `json:"sharing"`
}

// TranscriptResponse carries the finalized transcript
type TranscriptResponse struct {
	Entries []entities.TranscriptEntry `json:"entries"`
}

// DownloadURLResponse carries a signed document URL
type DownloadURLResponse struct {
	URL string `json:"url"`
}

// GenerateQuestionsRequest triggers assessment question generation
type GenerateQuestionsRequest struct {
	MaterialID     string `json:"material_id"`
	StudySessionID string `json:"study_session_id"`
}

// GenerateQuestionsResponse reports how many questions were produced
type GenerateQuestionsResponse struct {
	QuestionsGenerated int `json:"questions_generated"`
}

// StartAssessmentRequest opens an assessment attempt
type StartAssessmentRequest struct {
	MaterialID string `json:"material_id"`
}

// StartAssessmentResponse carries the new attempt's ID
type StartAssessmentResponse struct {
	AssessmentID string `json:"assessment_id"`
}

// QuestionsResponse carries the generated questions
type QuestionsResponse struct {
	Questions []repositories.Question `json:"questions"`
}

// SaveAnswerRequest records one answer
type SaveAnswerRequest struct {
	AssessmentID string `json:"assessment_id"`
	QuestionID   string `json:"question_id"`
	Answer       string `json:"answer"`
}

// MarkAssessmentRequest scores a completed attempt
type MarkAssessmentRequest struct {
	AssessmentID string `json:"assessment_id"`
}
