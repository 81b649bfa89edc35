package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docchat/internal/domain"
)

// readerFunc extracts the text content of a single file.
type readerFunc func(path string) (string, error)

// readers is the closed set of supported file types, keyed by
// lowercased extension. Unsupported extensions are skipped, not errors.
var readers = map[string]readerFunc{
	".txt": readText,
	".pdf": readPDF,
}

// DirLoader loads every supported file from a directory into documents.
type DirLoader struct {
	logger *zap.Logger
}

// New creates a directory loader.
func New(logger *zap.Logger) *DirLoader {
	return &DirLoader{logger: logger}
}

// Load reads all .txt and .pdf files directly under dir, in file name
// order, one document per file. Hidden files and subdirectories are
// skipped. It fails when the directory is missing or holds no
// supported files.
func (l *DirLoader) Load(dir string) ([]domain.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.NewError(domain.KindNoDocuments,
			fmt.Sprintf("cannot read docs directory %s", dir), err).
			WithHint("create the directory and add .txt or .pdf files to it")
	}

	var docs []domain.Document
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		read, ok := readers[strings.ToLower(filepath.Ext(entry.Name()))]
		if !ok {
			l.logger.Debug("skipping unsupported file", zap.String("file", entry.Name()))
			continue
		}
		path := filepath.Join(dir, entry.Name())
		content, err := read(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", entry.Name(), err)
		}
		if strings.TrimSpace(content) == "" {
			l.logger.Warn("file yielded no text, skipping", zap.String("file", entry.Name()))
			continue
		}
		docs = append(docs, domain.Document{
			ID:      uuid.NewString(),
			Path:    path,
			Name:    entry.Name(),
			Content: content,
		})
		l.logger.Info("loaded document",
			zap.String("file", entry.Name()),
			zap.Int("chars", len(content)))
	}

	if len(docs) == 0 {
		return nil, domain.NewError(domain.KindNoDocuments,
			fmt.Sprintf("no supported documents found in %s", dir), nil).
			WithHint("add .txt or .pdf files to the docs directory and ingest again")
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
