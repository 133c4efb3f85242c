package workspace

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

const defaultTimeout = 30 * time.Second

// Config holds configuration for the workspace collaborator client
type Config struct {
	BaseURL string        // Required: base URL of the workspace service
	Timeout time.Duration // Optional: per-request timeout (default: 30s)
}

// Client implements WorkspaceInitializer against the workspace HTTP service
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *auth.TokenManager
	logger     *zap.Logger
}

var _ repositories.WorkspaceInitializer = (*Client)(nil)

func NewClient(config Config, tokens *auth.TokenManager, logger *zap.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("workspace base URL is required")
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    config.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		logger:     logger,
	}, nil
}

type initializeRequest struct {
	StudySessionID string `json:"study_session_id"`
	UserID         string `json:"user_id"`
}

type initializeResponse struct {
	Success        bool                         `json:"success"`
	StudySessionID string                       `json:"study_session_id"`
	MaterialID     string                       `json:"material_id"`
	CacheStatus    string                       `json:"cache_status"`
	Message        string                       `json:"message"`
	InitialMessage *repositories.InitialMessage `json:"initial_message,omitempty"`
}

// InitializeWorkspace asks the collaborator to prepare the study session's
// material cache and concept index, and returns the initial chat message to
// seed the workspace with. Cache creation may continue in the background on
// the collaborator side; CacheStatus reports "exists" or "creating".
func (c *Client) InitializeWorkspace(ctx context.Context, studySessionID, userID string) (*repositories.WorkspaceInitialization, error) {
	payload, err := json.Marshal(initializeRequest{
		StudySessionID: studySessionID,
		UserID:         userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode initialize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/initialize-workspace", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create initialize request: %w", err)
	}
	if err := c.authorize(req, userID); err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("workspace initialization request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("workspace initialization failed with status %d: %s", resp.StatusCode, body)
	}

	var out initializeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode initialize response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("workspace initialization rejected: %s", out.Message)
	}

	c.logger.Info("Workspace initialized",
		zap.String("study_session_id", out.StudySessionID),
		zap.String("cache_status", out.CacheStatus))

	return &repositories.WorkspaceInitialization{
		StudySessionID: out.StudySessionID,
		MaterialID:     out.MaterialID,
		CacheStatus:    out.CacheStatus,
		InitialMessage: out.InitialMessage,
	}, nil
}

func (c *Client) authorize(req *http.Request, userID string) error {
	token, err := c.tokens.GenerateServiceToken(userID)
	if err != nil {
		return fmt.Errorf("failed to sign service token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
