package port

import "docchat/internal/domain"

// Loader reads crawler output from a directory into documents.
// Unreadable files are skipped, not fatal.
type Loader interface {
	Load(root string) ([]domain.Document, error)
}
