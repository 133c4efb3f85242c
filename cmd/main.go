package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/aieducate/livesession/adapters/assessment"
	"github.com/aieducate/livesession/adapters/devices"
	"github.com/aieducate/livesession/adapters/documents"
	"github.com/aieducate/livesession/adapters/workspace"
	"github.com/aieducate/livesession/internal/api"
	"github.com/aieducate/livesession/internal/audio"
	"github.com/aieducate/livesession/internal/auth"
	"github.com/aieducate/livesession/internal/config"
	"github.com/aieducate/livesession/internal/live"
	"github.com/aieducate/livesession/internal/saga"
	"github.com/aieducate/livesession/internal/screencap"
	"github.com/aieducate/livesession/internal/transcript"
	"github.com/aieducate/livesession/usecase"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	clk := clock.New()
	tokens := auth.NewTokenManager(cfg.JWTSecret)

	// Device layer: real hardware integration is an embedder concern; the
	// daemon ships file-backed and silent stand-ins selected by config
	var micSource audio.Source
	micRate := cfg.MicSampleRate
	if cfg.MicWAVPath != "" {
		wavSource := devices.NewWAVSource(cfg.MicWAVPath, logger)
		if err := wavSource.Start(context.Background()); err != nil {
			logger.Fatal("Failed to open microphone WAV", zap.Error(err))
		}
		micRate = wavSource.SampleRate()
		micSource = wavSource
	} else {
		micSource = devices.NewSilenceSource(cfg.MicSampleRate)
	}

	var frameSource screencap.FrameSource
	if cfg.ScreenImagePath != "" {
		frameSource = devices.NewStaticFrameSource(cfg.ScreenImagePath, logger)
	}

	// Transport and media pipeline
	liveClient := live.NewClient(cfg.AgentURL, cfg.ConnectTimeout, clk, logger)
	recorder := audio.NewRecorder(micSource, micRate, logger)
	player := audio.NewPlayer(devices.NewLogOutput(logger), clk, logger)

	var caster usecase.ScreenCaster
	if frameSource != nil {
		caster = screencap.NewCaster(frameSource, liveClient, clk, logger)
	} else {
		caster = disabledCaster{}
	}

	store := transcript.NewStore(clk, logger)

	// Collaborator clients
	workspaceClient, err := workspace.NewClient(workspace.Config{BaseURL: cfg.WorkspaceURL}, tokens, logger)
	if err != nil {
		logger.Fatal("Failed to create workspace client", zap.Error(err))
	}
	assessmentClient, err := assessment.NewClient(assessment.Config{
		BaseURL: cfg.AssessmentURL,
		UserID:  cfg.UserID,
	}, tokens, logger)
	if err != nil {
		logger.Fatal("Failed to create assessment client", zap.Error(err))
	}
	documentsClient, err := documents.NewClient(documents.Config{
		BaseURL: cfg.DocumentsURL,
		UserID:  cfg.UserID,
	}, tokens, logger)
	if err != nil {
		logger.Fatal("Failed to create documents client", zap.Error(err))
	}

	runner := saga.NewRunner(time.Minute, logger)
	sessions := usecase.NewSessionService(liveClient, recorder, player, caster,
		store, workspaceClient, runner, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, api.NewHandlers(sessions, assessmentClient, documentsClient, tokens, logger))

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Session daemon started",
		zap.String("port", cfg.Port),
		zap.String("agent_url", cfg.AgentURL))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Session daemon is shutting down...")

	sessions.StopSession()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Session daemon exited")
}

// disabledCaster stands in when no frame source is configured
type disabledCaster struct{}

func (disabledCaster) Toggle(ctx context.Context) (bool, error) {
	return false, errNoScreenSource
}
func (disabledCaster) Stop()         {}
func (disabledCaster) Sharing() bool { return false }

var errNoScreenSource = errors.New("no screen source configured")
