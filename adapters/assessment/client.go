package assessment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aieducate/livesession/domain/repositories"
	"github.com/aieducate/livesession/internal/auth"
)

const defaultTimeout = 60 * time.Second

// Config holds configuration for the assessment collaborator client
type Config struct {
	BaseURL string        // Required: base URL of the assessment service
	UserID  string        // Required: identity the service tokens are signed for
	Timeout time.Duration // Optional: per-request timeout (default: 60s,
	// question generation is slow)
}

// Client implements AssessmentService against the assessment HTTP service.
// The calls are passthroughs; generation and marking run server-side.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
	tokens     *auth.TokenManager
	logger     *zap.Logger
}

var _ repositories.AssessmentService = (*Client)(nil)

func NewClient(config Config, tokens *auth.TokenManager, logger *zap.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("assessment base URL is required")
	}
	if config.UserID == "" {
		return nil, fmt.Errorf("assessment user ID is required")
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    config.BaseURL,
		userID:     config.UserID,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		logger:     logger,
	}, nil
}

type generateQuestionsRequest struct {
	MaterialID     string `json:"material_id"`
	StudySessionID string `json:"study_session_id"`
	UserID         string `json:"user_id"`
}

type generateQuestionsResponse struct {
	Success            bool   `json:"success"`
	QuestionsGenerated int    `json:"questions_generated"`
	Message            string `json:"message"`
}

// GenerateQuestions triggers question generation for the session's material
// and returns how many questions were produced.
func (c *Client) GenerateQuestions(ctx context.Context, materialID, studySessionID, userID string) (int, error) {
	var out generateQuestionsResponse
	err := c.post(ctx, "/generate-questions", generateQuestionsRequest{
		MaterialID:     materialID,
		StudySessionID: studySessionID,
		UserID:         userID,
	}, &out)
	if err != nil {
		return 0, err
	}
	if !out.Success {
		return 0, fmt.Errorf("question generation rejected: %s", out.Message)
	}

	c.logger.Info("Assessment questions generated",
		zap.String("material_id", materialID),
		zap.Int("count", out.QuestionsGenerated))
	return out.QuestionsGenerated, nil
}

type startAssessmentRequest struct {
	UserID     string `json:"user_id"`
	MaterialID string `json:"material_id"`
}

type startAssessmentResponse struct {
	Success      bool   `json:"success"`
	AssessmentID string `json:"assessment_id"`
	Message      string `json:"message"`
}

// StartAssessment opens a new assessment attempt and returns its ID
func (c *Client) StartAssessment(ctx context.Context, materialID, userID string) (string, error) {
	var out startAssessmentResponse
	err := c.post(ctx, "/start-assessment", startAssessmentRequest{
		UserID:     userID,
		MaterialID: materialID,
	}, &out)
	if err != nil {
		return "", err
	}
	if !out.Success {
		return "", fmt.Errorf("start assessment rejected: %s", out.Message)
	}
	return out.AssessmentID, nil
}

type questionsResponse struct {
	Success   bool                    `json:"success"`
	Questions []repositories.Question `json:"questions"`
}

// Questions fetches the generated questions for a material
func (c *Client) Questions(ctx context.Context, materialID string) ([]repositories.Question, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/questions/"+materialID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create questions request: %w", err)
	}
	if err := c.authorize(req); err != nil {
		return nil, err
	}

	var out questionsResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

type saveAnswerRequest struct {
	AssessmentID string `json:"assessment_id"`
	QuestionID   string `json:"question_id"`
	UserAnswer   string `json:"user_answer"`
}

type saveAnswerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SaveAnswer records the user's answer to one question
func (c *Client) SaveAnswer(ctx context.Context, assessmentID, questionID, answer string) error {
	var out saveAnswerResponse
	err := c.post(ctx, "/save-answer", saveAnswerRequest{
		AssessmentID: assessmentID,
		QuestionID:   questionID,
		UserAnswer:   answer,
	}, &out)
	if err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("save answer rejected: %s", out.Message)
	}
	return nil
}

type markAssessmentRequest struct {
	AssessmentID string `json:"assessment_id"`
	UserID       string `json:"user_id"`
}

type markAssessmentResponse struct {
	Success        bool    `json:"success"`
	AssessmentID   string  `json:"assessment_id"`
	Score          int     `json:"score"`
	TotalQuestions int     `json:"total_questions"`
	Percentage     float64 `json:"percentage"`
	Summary        string  `json:"summary"`
	Message        string  `json:"message"`
}

// MarkAssessment scores a completed assessment and returns the result
func (c *Client) MarkAssessment(ctx context.Context, assessmentID string) (*repositories.AssessmentResult, error) {
	var out markAssessmentResponse
	err := c.post(ctx, "/mark-assessment", markAssessmentRequest{
		AssessmentID: assessmentID,
		UserID:       c.userID,
	}, &out)
	if err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("mark assessment rejected: %s", out.Message)
	}

	return &repositories.AssessmentResult{
		AssessmentID:   out.AssessmentID,
		Score:          out.Score,
		TotalQuestions: out.TotalQuestions,
		Percentage:     out.Percentage,
		Feedback:       out.Summary,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	if err := c.authorize(req); err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("assessment request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("assessment request failed with status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode assessment response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) error {
	token, err := c.tokens.GenerateServiceToken(c.userID)
	if err != nil {
		return fmt.Errorf("failed to sign service token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
