package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the session daemon
type Config struct {
	// Port is the local control API port
	Port string

	// AgentURL is the base URL of the remote tutoring agent,
	// e.g. ws://localhost:8004
	AgentURL string

	// WorkspaceURL is the base URL of the pre-active-learn service
	WorkspaceURL string

	// AssessmentURL is the base URL of the assessment service
	AssessmentURL string

	// DocumentsURL is the base URL of the document backend
	DocumentsURL string

	// JWTSecret signs control API and collaborator bearer tokens
	JWTSecret string

	// UserID identifies the daemon's user towards the collaborator backends.
	// The control API authenticates per request; this identity signs the
	// outbound service tokens.
	UserID string

	// MicSampleRate is the native sample rate of the microphone source.
	// Capture resamples to the 16 kHz wire rate when they differ.
	MicSampleRate int

	// MicWAVPath optionally points the capture pipeline at a WAV file
	// instead of a real microphone, for development and testing
	MicWAVPath string

	// ScreenImagePath optionally points the screen caster at a static image
	// instead of a real display grab
	ScreenImagePath string

	// ConnectTimeout bounds a single live connect attempt
	ConnectTimeout time.Duration
}

// Load reads configuration from the environment, loading .env first when
// present. Missing values fall back to development defaults.
func Load() *Config {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", "8080"),
		AgentURL:        getEnv("AGENT_URL", "ws://localhost:8004"),
		WorkspaceURL:    getEnv("WORKSPACE_URL", "http://localhost:8001"),
		AssessmentURL:   getEnv("ASSESSMENT_URL", "http://localhost:8002"),
		DocumentsURL:    getEnv("DOCUMENTS_URL", "http://localhost:8000"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		UserID:          getEnv("USER_ID", "dev-user"),
		MicSampleRate:   getEnvInt("MIC_SAMPLE_RATE", 48000),
		MicWAVPath:      getEnv("MIC_WAV_PATH", ""),
		ScreenImagePath: getEnv("SCREEN_IMAGE_PATH", ""),
		ConnectTimeout:  getEnvDuration("CONNECT_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
