package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aieducate/livesession/domain/entities"
	"github.com/aieducate/livesession/domain/repositories"
	"github.com/aieducate/livesession/internal/auth"
	"github.com/aieducate/livesession/usecase"
)

// Handlers wires the control-plane endpoints to the session service and the
// collaborator clients.
type Handlers struct {
	sessions    *usecase.SessionService
	assessments repositories.AssessmentService
	documents   repositories.DocumentStore
	tokens      *auth.TokenManager
	logger      *zap.Logger
}

func NewHandlers(
	sessions *usecase.SessionService,
	assessments repositories.AssessmentService,
	documents repositories.DocumentStore,
	tokens *auth.TokenManager,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		sessions:    sessions,
		assessments: assessments,
		documents:   documents,
		tokens:      tokens,
		logger:      logger,
	}
}

// InitRoutes initializes all control API routes. Everything except the
// health check requires a bearer token.
func InitRoutes(e *echo.Echo, h *Handlers) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "livesession",
		})
	})

	v1 := e.Group("/api/v1", h.requireAuth)

	v1.POST("/session/start", h.startSession)
	v1.POST("/session/stop", h.stopSession)
	v1.GET("/session/status", h.sessionStatus)

	v1.POST("/recording/start", h.startRecording)
	v1.POST("/recording/stop", h.stopRecording)
	v1.POST("/screenshare/toggle", h.toggleScreenShare)

	v1.POST("/message", h.sendText)
	v1.GET("/transcript", h.transcript)

	v1.GET("/documents/:id/download-url", h.documentDownloadURL)

	v1.POST("/assessment/generate", h.generateQuestions)
	v1.POST("/assessment/start", h.startAssessment)
	v1.GET("/assessment/questions/:materialID", h.assessmentQuestions)
	v1.POST("/assessment/answer", h.saveAnswer)
	v1.POST("/assessment/mark", h.markAssessment)
}

// requireAuth validates the bearer token and stores the caller's user ID in
// the request context.
func (h *Handlers) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "missing_token",
				Message: "Bearer token is required",
			})
		}

		claims, err := h.tokens.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			h.logger.Warn("Rejected request with invalid token", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "invalid_token",
				Message: "Invalid or expired token",
			})
		}

		c.Set("user_id", claims.UserID)
		return next(c)
	}
}

func userID(c echo.Context) string {
	id, _ := c.Get("user_id").(string)
	return id
}

func (h *Handlers) startSession(c echo.Context) error {
	var req StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.StudySessionID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "study_session_id is required",
		})
	}

	session, err := h.sessions.StartSession(c.Request().Context(), userID(c), req.StudySessionID)
	if err != nil {
		h.logger.Error("Failed to start session",
			zap.String("study_session_id", req.StudySessionID),
			zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "session_start_failed",
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, SessionResponse{Session: session})
}

func (h *Handlers) stopSession(c echo.Context) error {
	session := h.sessions.StopSession()
	return c.JSON(http.StatusOK, SessionResponse{Session: session})
}

func (h *Handlers) sessionStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessions.Status())
}

func (h *Handlers) startRecording(c echo.Context) error {
	if err := h.sessions.StartRecording(c.Request().Context()); err != nil {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "recording_failed",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, RecordingResponse{Recording: true})
}

func (h *Handlers) stopRecording(c echo.Context) error {
	h.sessions.StopRecording()
	return c.JSON(http.StatusOK, RecordingResponse{Recording: false})
}

func (h *Handlers) toggleScreenShare(c echo.Context) error {
	sharing, err := h.sessions.ToggleScreenShare(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "screenshare_failed",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, ScreenShareResponse{Sharing: sharing})
}

func (h *Handlers) sendText(c echo.Context) error {
	var req SendTextRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Text == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "text is required",
		})
	}

	if err := h.sessions.SendText(req.Text); err != nil {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "send_failed",
			Message: err.Error(),
		})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handlers) transcript(c echo.Context) error {
	entries := h.sessions.Transcript()
	if entries == nil {
		entries = []entities.TranscriptEntry{}
	}
	return c.JSON(http.StatusOK, TranscriptResponse{Entries: entries})
}

func (h *Handlers) documentDownloadURL(c echo.Context) error {
	url, err := h.documents.DownloadURL(c.Request().Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to resolve download URL",
			zap.String("document_id", c.Param("id")),
			zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "download_url_failed",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, DownloadURLResponse{URL: url})
}

func (h *Handlers) generateQuestions(c echo.Context) error {
	var req GenerateQuestionsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	count, err := h.assessments.GenerateQuestions(c.Request().Context(),
		req.MaterialID, req.StudySessionID, userID(c))
	if err != nil {
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "generation_failed",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, GenerateQuestionsResponse{QuestionsGenerated: count})
}

func (h *Handlers) startAssessment(c echo.Context) error {
	var req StartAssessmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	id, err := h.assessments.StartAssessment(c.Request().Context(), req.MaterialID, userID(c))
	if err != nil {
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "assessment_start_failed",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, StartAssessmentResponse{AssessmentID: id})
}

func (h *Handlers) assessmentQuestions(c echo.Context) error {
	questions, err := h.assessments.Questions(c.Request().Context(), c.Param("materialID"))
	if err != nil {
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "questions_fetch_failed",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, QuestionsResponse{Questions: questions})
}

func (h *Handlers) saveAnswer(c echo.Context) error {
	var req SaveAnswerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if err := h.assessments.SaveAnswer(c.Request().Context(),
		req.AssessmentID, req.QuestionID, req.Answer); err != nil {
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "save_answer_failed",
			Message: err.Error(),
		})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handlers) markAssessment(c echo.Context) error {
	var req MarkAssessmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	result, err := h.assessments.MarkAssessment(c.Request().Context(), req.AssessmentID)
	if err != nil {
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "marking_failed",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, result)
}
