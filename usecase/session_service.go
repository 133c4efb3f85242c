package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/aieducate/livesession/domain/entities"
	"github.com/aieducate/livesession/domain/repositories"
	"github.com/aieducate/livesession/internal/live"
	"github.com/aieducate/livesession/internal/saga"
	"github.com/aieducate/livesession/internal/transcript"
)

// LiveTransport is the connection to the remote tutoring agent
type LiveTransport interface {
	Connect(ctx context.Context, userID, sessionID string) error
	Disconnect()
	SendAudio(chunk []byte)
	SendText(text string)
	SendImage(data, mimeType string)
	Status() entities.ConnectionStatus
	OnEvent(fn live.EventHandler) func()
	OnStatusChange(fn live.StatusHandler) func()
}

// AudioRecorder captures microphone audio into a sink
type AudioRecorder interface {
	Start(ctx context.Context, sink func([]byte)) error
	Stop()
	Recording() bool
	Level() float64
}

// AudioPlayer renders agent audio
type AudioPlayer interface {
	PlayPCM(buf []byte)
	PlayClip(data string) error
	Stop()
	Playing() bool
}

// ScreenCaster streams periodic screen frames to the agent
type ScreenCaster interface {
	Toggle(ctx context.Context) (bool, error)
	Stop()
	Sharing() bool
}

// SessionService orchestrates one live tutoring session: bring-up, media
// routing between the devices and the transport, and teardown. One service
// instance manages at most one session at a time.
type SessionService struct {
	logger     *zap.Logger
	transport  LiveTransport
	recorder   AudioRecorder
	player     AudioPlayer
	caster     ScreenCaster
	transcript *transcript.Store
	workspace  repositories.WorkspaceInitializer
	runner     *saga.Runner

	mu          sync.Mutex
	session     *entities.LiveSession
	unsubEvent  func()
	unsubStatus func()
}

func NewSessionService(
	transport LiveTransport,
	recorder AudioRecorder,
	player AudioPlayer,
	caster ScreenCaster,
	store *transcript.Store,
	workspace repositories.WorkspaceInitializer,
	runner *saga.Runner,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		logger:     logger,
		transport:  transport,
		recorder:   recorder,
		player:     player,
		caster:     caster,
		transcript: store,
		workspace:  workspace,
		runner:     runner,
	}
}

// StartSession brings up a live session: the collaborator prepares the
// workspace, the initial chat message seeds the transcript, and the live
// connection opens, in that order. Earlier steps are compensated when a
// later one fails. Fails when a session is already active.
func (s *SessionService) StartSession(ctx context.Context, userID, studySessionID string) (*entities.LiveSession, error) {
	s.mu.Lock()
	if s.session != nil && (s.session.IsActive() || s.session.Status == entities.SessionStatusPreparing) {
		s.mu.Unlock()
		return nil, fmt.Errorf("session %s is already active", s.session.ID)
	}
	session := entities.NewLiveSession(userID, studySessionID)
	s.session = session
	s.mu.Unlock()

	s.subscribe()

	data := saga.Data{}
	steps := []saga.Step{
		&initializeWorkspaceStep{workspace: s.workspace, userID: userID, studySessionID: studySessionID},
		&seedTranscriptStep{store: s.transcript},
		&connectLiveStep{transport: s.transport, userID: userID, studySessionID: studySessionID},
	}

	if err := s.runner.Run(ctx, "session-bring-up", data, steps); err != nil {
		s.mu.Lock()
		session.MarkFailed()
		s.mu.Unlock()
		s.unsubscribe()
		return nil, err
	}

	s.mu.Lock()
	session.MarkConnected()
	s.mu.Unlock()

	s.logger.Info("Session started",
		zap.String("session_id", session.ID),
		zap.String("study_session_id", studySessionID))
	return session, nil
}

// StopSession tears the session down: recording, screen share and playback
// stop, the live connection closes, and the session is marked ended. The
// transcript survives for a final fetch. Idempotent.
func (s *SessionService) StopSession() *entities.LiveSession {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	s.recorder.Stop()
	s.caster.Stop()
	s.player.Stop()
	s.transport.Disconnect()
	s.unsubscribe()

	if session != nil {
		s.mu.Lock()
		if session.Status != entities.SessionStatusEnded {
			session.MarkEnded()
		}
		s.mu.Unlock()
		s.logger.Info("Session stopped", zap.String("session_id", session.ID))
	}
	return session
}

// StartRecording begins streaming microphone audio to the agent
func (s *SessionService) StartRecording(ctx context.Context) error {
	if s.transport.Status() != entities.ConnectionStatusConnected {
		return fmt.Errorf("cannot record while %s", s.transport.Status())
	}
	return s.recorder.Start(ctx, s.transport.SendAudio)
}

// StopRecording stops the microphone stream. Idempotent.
func (s *SessionService) StopRecording() {
	s.recorder.Stop()
}

// ToggleScreenShare flips screen sharing and reports the new state
func (s *SessionService) ToggleScreenShare(ctx context.Context) (bool, error) {
	if !s.caster.Sharing() && s.transport.Status() != entities.ConnectionStatusConnected {
		return false, fmt.Errorf("cannot share screen while %s", s.transport.Status())
	}
	return s.caster.Toggle(ctx)
}

// SendText forwards a typed user message to the agent
func (s *SessionService) SendText(text string) error {
	if s.transport.Status() != entities.ConnectionStatusConnected {
		return fmt.Errorf("cannot send text while %s", s.transport.Status())
	}
	s.transport.SendText(text)
	return nil
}

// Transcript returns the finalized transcript so far
func (s *SessionService) Transcript() []entities.TranscriptEntry {
	return s.transcript.Entries()
}

// SessionStatus is a point-in-time snapshot of the whole session
type SessionStatus struct {
	Session    *entities.LiveSession     `json:"session,omitempty"`
	Connection entities.ConnectionStatus `json:"connection"`
	Recording  bool                      `json:"recording"`
	Playing    bool                      `json:"playing"`
	Sharing    bool                      `json:"sharing"`
	MicLevel   float64                   `json:"mic_level"`
	Transcript int                       `json:"transcript_entries"`
}

// Status reports the current state of the session and its devices. The
// snapshot carries a copy of the session; the live one keeps changing under
// the service mutex while the snapshot is serialized.
func (s *SessionService) Status() SessionStatus {
	s.mu.Lock()
	var session *entities.LiveSession
	if s.session != nil {
		snapshot := *s.session
		session = &snapshot
	}
	s.mu.Unlock()

	return SessionStatus{
		Session:    session,
		Connection: s.transport.Status(),
		Recording:  s.recorder.Recording(),
		Playing:    s.player.Playing(),
		Sharing:    s.caster.Sharing(),
		MicLevel:   s.recorder.Level(),
		Transcript: s.transcript.Len(),
	}
}

func (s *SessionService) subscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubEvent == nil {
		s.unsubEvent = s.transport.OnEvent(s.handleEvent)
	}
	if s.unsubStatus == nil {
		s.unsubStatus = s.transport.OnStatusChange(s.handleStatus)
	}
}

func (s *SessionService) unsubscribe() {
	s.mu.Lock()
	unsubEvent, unsubStatus := s.unsubEvent, s.unsubStatus
	s.unsubEvent, s.unsubStatus = nil, nil
	s.mu.Unlock()

	if unsubEvent != nil {
		unsubEvent()
	}
	if unsubStatus != nil {
		unsubStatus()
	}
}

// handleEvent routes one normalized agent event to the right device
func (s *SessionService) handleEvent(ev entities.AgentEvent) {
	switch ev.Kind {
	case entities.EventAudio:
		s.player.PlayPCM(ev.Audio)
	case entities.EventTranscription:
		s.transcript.HandleEvent(ev)
	case entities.EventContent:
		if ev.AudioBase64 != "" {
			if err := s.player.PlayClip(ev.AudioBase64); err != nil {
				s.logger.Warn("Failed to play inline audio clip", zap.Error(err))
			}
		}
		if ev.Text != "" {
			// Content text is rendered live by the UI; it is not part of the
			// spoken transcript
			s.logger.Debug("Agent content text", zap.Int("length", len(ev.Text)))
		}
	}
}

func (s *SessionService) handleStatus(status entities.ConnectionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.Connection = status
	}
}

// initializeWorkspaceStep asks the collaborator to prepare the material cache
// and concept index for the session.
type initializeWorkspaceStep struct {
	workspace      repositories.WorkspaceInitializer
	userID         string
	studySessionID string
}

func (st *initializeWorkspaceStep) ID() saga.StepID { return "initialize-workspace" }

func (st *initializeWorkspaceStep) Execute(ctx context.Context, data saga.Data) error {
	init, err := st.workspace.InitializeWorkspace(ctx, st.studySessionID, st.userID)
	if err != nil {
		return err
	}
	data["initialization"] = init
	return nil
}

func (st *initializeWorkspaceStep) Compensate(ctx context.Context, data saga.Data) error {
	// Cache creation is collaborator-owned and harmless to leave behind
	return nil
}

// seedTranscriptStep records the collaborator's initial chat message so the
// transcript starts with the greeting the user sees.
type seedTranscriptStep struct {
	store *transcript.Store
}

func (st *seedTranscriptStep) ID() saga.StepID { return "seed-transcript" }

func (st *seedTranscriptStep) Execute(ctx context.Context, data saga.Data) error {
	st.store.Clear()
	init, _ := data["initialization"].(*repositories.WorkspaceInitialization)
	if init == nil || init.InitialMessage == nil || init.InitialMessage.Text == "" {
		return nil
	}
	st.store.Append(entities.RoleAssistant, init.InitialMessage.Text)
	return nil
}

func (st *seedTranscriptStep) Compensate(ctx context.Context, data saga.Data) error {
	st.store.Clear()
	return nil
}

// connectLiveStep opens the live connection to the agent
type connectLiveStep struct {
	transport      LiveTransport
	userID         string
	studySessionID string
}

func (st *connectLiveStep) ID() saga.StepID { return "connect-live" }

func (st *connectLiveStep) Execute(ctx context.Context, data saga.Data) error {
	return st.transport.Connect(ctx, st.userID, st.studySessionID)
}

func (st *connectLiveStep) Compensate(ctx context.Context, data saga.Data) error {
	st.transport.Disconnect()
	return nil
}
