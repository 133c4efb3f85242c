package live

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/aieducate/livesession/domain/entities"
)

// The agent's wire format is unstable: the same information arrives in
// several overlapping optional shapes, and field names flip between
// camelCase and snake_case across versions. Everything is normalized into
// entities.AgentEvent here, at the boundary, so no consumer ever re-checks
// alternate fields. The alias tolerance is a compatibility shim, not a
// guaranteed contract; the observed variant is logged so it can be monitored.

type wireTranscription struct {
	Text         string `json:"text"`
	IsFinal      *bool  `json:"isFinal"`
	IsFinalSnake *bool  `json:"is_final"`
	Finished     *bool  `json:"finished"`
}

// final resolves the transcription finality flag across its known alias
// spellings and reports which variant carried it.
func (t *wireTranscription) final() (bool, string) {
	switch {
	case t.IsFinal != nil:
		return *t.IsFinal, "isFinal"
	case t.IsFinalSnake != nil:
		return *t.IsFinalSnake, "is_final"
	case t.Finished != nil:
		return *t.Finished, "finished"
	}
	return false, ""
}

type wireInlineData struct {
	MimeType      string `json:"mimeType"`
	MimeTypeSnake string `json:"mime_type"`
	Data          string `json:"data"`
}

type wirePart struct {
	Text            string          `json:"text"`
	InlineData      *wireInlineData `json:"inlineData"`
	InlineDataSnake *wireInlineData `json:"inline_data"`
}

func (p *wirePart) inline() *wireInlineData {
	if p.InlineData != nil {
		return p.InlineData
	}
	return p.InlineDataSnake
}

type wireContent struct {
	Parts []wirePart `json:"parts"`
}

type wireServerContent struct {
	InlineData *wireInlineData `json:"inlineData"`
	ModelTurn  *wireContent    `json:"modelTurn"`
}

type wireMessage struct {
	OutputTranscription      *wireTranscription `json:"outputTranscription"`
	OutputTranscriptionSnake *wireTranscription `json:"output_transcription"`
	InputTranscription       *wireTranscription `json:"inputTranscription"`
	InputTranscriptionSnake  *wireTranscription `json:"input_transcription"`
	Content                  *wireContent       `json:"content"`
	ServerContent            *wireServerContent `json:"serverContent"`
}

func coalesce(a, b *wireTranscription) *wireTranscription {
	if a != nil {
		return a
	}
	return b
}

// normalizeMessage parses one inbound text frame and maps every populated
// upstream shape to canonical events. A single message may yield several
// events; a message that parses but carries nothing recognized yields none.
func normalizeMessage(raw []byte, logger *zap.Logger) ([]entities.AgentEvent, error) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse agent message: %w", err)
	}

	var events []entities.AgentEvent

	if t := coalesce(msg.OutputTranscription, msg.OutputTranscriptionSnake); t != nil {
		if ev, ok := transcriptionEvent(t, entities.RoleAssistant, logger); ok {
			events = append(events, ev)
		}
	}
	if t := coalesce(msg.InputTranscription, msg.InputTranscriptionSnake); t != nil {
		if ev, ok := transcriptionEvent(t, entities.RoleUser, logger); ok {
			events = append(events, ev)
		}
	}

	if msg.Content != nil {
		events = append(events, partEvents(msg.Content.Parts)...)
	}
	if msg.ServerContent != nil {
		if d := msg.ServerContent.InlineData; d != nil && d.Data != "" {
			events = append(events, entities.AgentEvent{
				Kind:        entities.EventContent,
				AudioBase64: d.Data,
			})
		}
		if msg.ServerContent.ModelTurn != nil {
			events = append(events, partEvents(msg.ServerContent.ModelTurn.Parts)...)
		}
	}

	return events, nil
}

func transcriptionEvent(t *wireTranscription, role entities.Role, logger *zap.Logger) (entities.AgentEvent, bool) {
	final, variant := t.final()
	if t.Text == "" && variant == "" {
		return entities.AgentEvent{}, false
	}
	if variant != "" {
		logger.Debug("Transcription finality variant observed",
			zap.String("variant", variant),
			zap.String("role", string(role)))
	}
	return entities.AgentEvent{
		Kind:  entities.EventTranscription,
		Role:  role,
		Text:  t.Text,
		Final: final,
	}, true
}

func partEvents(parts []wirePart) []entities.AgentEvent {
	var events []entities.AgentEvent
	for i := range parts {
		ev := entities.AgentEvent{Kind: entities.EventContent, Text: parts[i].Text}
		if d := parts[i].inline(); d != nil {
			ev.AudioBase64 = d.Data
		}
		if ev.Text != "" || ev.AudioBase64 != "" {
			events = append(events, ev)
		}
	}
	return events
}
