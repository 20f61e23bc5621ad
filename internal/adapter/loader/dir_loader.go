package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"docchat/internal/domain"
)

// DirLoader reads crawler output from a directory: one file per crawled
// page, named from the page's URL segment. HTML files are reduced to plain
// text; markdown and text files are taken as-is. Files that cannot be read
// or yield no text are skipped with a warning.
type DirLoader struct {
	includes []string
	excludes []string
}

func NewDirLoader(includes, excludes []string) *DirLoader {
	if len(includes) == 0 {
		includes = []string{"**/*.html", "**/*.htm", "**/*.md", "**/*.txt"}
	}
	return &DirLoader{
		includes: includes,
		excludes: excludes,
	}
}

func (l *DirLoader) Load(root string) ([]domain.Document, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var docs []domain.Document
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if l.shouldExclude(relPath + "/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !l.shouldInclude(relPath) || l.shouldExclude(relPath) {
			return nil
		}

		doc, err := l.loadFile(path, relPath)
		if err != nil {
			slog.Warn("skipping document", "path", relPath, "error", err)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return docs, nil
}

func (l *DirLoader) loadFile(path, relPath string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%v: %w", err, domain.ErrMalformedDocument)
	}

	metadata := map[string]string{
		"source": relPath,
	}

	text := string(data)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		if title := extractHTMLTitle(text); title != "" {
			metadata["title"] = title
		}
		text = stripHTML(text)
		metadata["format"] = "html"
	case ".md":
		metadata["format"] = "markdown"
	default:
		metadata["format"] = "text"
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Document{}, fmt.Errorf("no text content: %w", domain.ErrMalformedDocument)
	}

	return domain.Document{
		ID:       generateDocID(relPath),
		Source:   relPath,
		Text:     text,
		Metadata: metadata,
	}, nil
}

func (l *DirLoader) shouldInclude(path string) bool {
	for _, pattern := range l.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (l *DirLoader) shouldExclude(path string) bool {
	for _, pattern := range l.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// generateDocID creates a stable ID for a document based on its path, so
// re-ingesting the same directory produces the same document IDs.
func generateDocID(relPath string) string {
	hash := sha256.Sum256([]byte(relPath))
	return hex.EncodeToString(hash[:8])
}
