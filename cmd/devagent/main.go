package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// devagent is a development stand-in for the remote tutoring agent. It
// accepts the same WebSocket connections the daemon opens in production,
// loops inbound audio back as binary frames, and answers text messages with
// transcription events, so the full media path can be exercised locally.

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type inboundMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type transcription struct {
	Text     string `json:"text"`
	Finished bool   `json:"finished"`
}

type outboundMessage struct {
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.GET("/ws/:user/:session", func(c echo.Context) error {
		return handleSession(c, logger)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8004"
	}

	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()
	logger.Info("Dev agent started", zap.String("port", port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.Shutdown(ctx)
}

func handleSession(c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	userID := c.Param("user")
	sessionID := c.Param("session")
	logger.Info("Session connected",
		zap.String("user", userID),
		zap.String("session", sessionID))

	// gorilla/websocket allows one concurrent writer
	var writeMu sync.Mutex
	writeJSON := func(v interface{}) {
		payload, err := json.Marshal(v)
		if err != nil {
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.WriteMessage(websocket.TextMessage, payload)
	}

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			logger.Info("Session disconnected",
				zap.String("session", sessionID),
				zap.Error(err))
			return nil
		}

		switch messageType {
		case websocket.BinaryMessage:
			// Loop the audio straight back so playback can be observed
			writeMu.Lock()
			conn.WriteMessage(websocket.BinaryMessage, payload)
			writeMu.Unlock()

			writeJSON(outboundMessage{
				InputTranscription: &transcription{
					Text:     fmt.Sprintf("[%d bytes of audio]", len(payload)),
					Finished: true,
				},
			})

		case websocket.TextMessage:
			var msg inboundMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				logger.Warn("Unparseable message", zap.Error(err))
				continue
			}

			switch msg.Type {
			case "text":
				writeJSON(outboundMessage{
					InputTranscription: &transcription{Text: msg.Text, Finished: true},
				})
				// An interim chunk followed by the settled reply, the way
				// the real agent streams its answer
				reply := "You said: " + msg.Text
				writeJSON(outboundMessage{
					OutputTranscription: &transcription{Text: reply[:len(reply)/2], Finished: false},
				})
				writeJSON(outboundMessage{
					OutputTranscription: &transcription{Text: reply, Finished: true},
				})
			case "image":
				logger.Info("Received frame",
					zap.String("mime_type", msg.MimeType),
					zap.Int("encoded_bytes", len(msg.Data)))
			default:
				logger.Warn("Unknown message type", zap.String("type", msg.Type))
			}
		}
	}
}
