package repositories

import "context"

// DocumentStore abstracts the document storage backend. Downloads go through
// short-lived signed URLs; the caller never touches bucket storage directly.
type DocumentStore interface {
	// DownloadURL resolves a signed download URL for a study document.
	DownloadURL(ctx context.Context, documentID string) (string, error)
}
