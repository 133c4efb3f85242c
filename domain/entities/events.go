package entities

// Role identifies the speaker of a transcript or chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// EventKind classifies a normalized inbound agent event
type EventKind string

const (
	// EventAudio is a raw PCM audio frame (24 kHz, mono, int16)
	EventAudio EventKind = "audio"
	// EventTranscription is a speech transcription, interim or final
	EventTranscription EventKind = "transcription"
	// EventContent is structured agent content (text and/or inline audio clip)
	EventContent EventKind = "content"
)

// AgentEvent is the canonical inbound event. The upstream wire format carries
// the same information in several overlapping optional shapes; the transport
// normalizes all of them into this single record at the boundary so consumers
// never re-check alternate fields.
type AgentEvent struct {
	Kind EventKind

	// Audio holds raw PCM bytes for EventAudio. No other field is populated
	// when Audio is set.
	Audio []byte

	// Role is the transcription source for EventTranscription.
	Role Role

	// Text is the transcription or content text.
	Text string

	// AudioBase64 is a base64 container-encoded audio clip attached to
	// EventContent.
	AudioBase64 string

	// Final marks a transcription as settled rather than interim.
	Final bool
}
