package repositories

import "context"

// ContentPart is one block of structured content attached to a chat message.
// Type is one of: text, math, animation, image, adaptive-guide.
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Latex    string `json:"latex,omitempty"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	GuideID  string `json:"guide_id,omitempty"`
}

// InitialMessage seeds the workspace UI before any live connection exists
type InitialMessage struct {
	Text    string        `json:"text"`
	Content []ContentPart `json:"content,omitempty"`
}

// WorkspaceInitialization is the result of preparing a study session's
// workspace on the backend.
type WorkspaceInitialization struct {
	StudySessionID string          `json:"study_session_id"`
	MaterialID     string          `json:"material_id"`
	CacheStatus    string          `json:"cache_status"`
	InitialMessage *InitialMessage `json:"initial_message,omitempty"`
}

// WorkspaceInitializer abstracts the workspace/session initialization backend.
// It triggers server-side material caching and concept extraction and returns
// the initial chat message to seed the UI.
type WorkspaceInitializer interface {
	InitializeWorkspace(ctx context.Context, studySessionID, userID string) (*WorkspaceInitialization, error)
}
