package documents

import (
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

const defaultTimeout = 15 * time.Second

// Config holds configuration for the document storage client
type Config struct {
	BaseURL string        // Required: base URL of the documents service
	UserID  string        // Required: identity the service tokens are signed for
	Timeout time.Duration // Optional: per-request timeout (default: 15s)
}

// Client implements DocumentStore against the documents HTTP service. The
// service resolves short-lived signed URLs; the actual bytes live in bucket
// storage this process never talks to.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
	tokens     *auth.TokenManager
	logger     *zap.Logger
}

var _ repositories.DocumentStore = (*Client)(nil)

func NewClient(config Config, tokens *auth.TokenManager, logger *zap.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("documents base URL is required")
	}
	if config.UserID == "" {
		return nil, fmt.Errorf("documents user ID is required")
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

type downloadURLResponse struct {
	Status string `json:"status"`
	URL    string `json:"url"`
}

// DownloadURL resolves a signed download URL for a study document
func (c *Client) DownloadURL(ctx context.Context, documentID string) (string, error) {
	url := fmt.Sprintf("%s/documents/%s/download-url", c.baseURL, documentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download-url request: %w", err)
	}

	token, err := c.tokens.GenerateServiceToken(c.userID)
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download-url request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("download-url request failed with status %d: %s", resp.StatusCode, body)
	}

	var out downloadURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode download-url response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("documents service returned no URL for %s", documentID)
	}

	c.logger.Debug("Resolved document download URL", zap.String("document_id", documentID))
	return out.URL, nil
}
