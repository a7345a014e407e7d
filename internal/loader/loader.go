// Package loader reads allow-listed text files from a directory tree into documents.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cortex/internal/domain"
	"github.com/kailas-cloud/cortex/internal/domain/chunk"
	"github.com/kailas-cloud/cortex/internal/domain/document"
)

// DefaultExtensions lists the text-bearing file types ingested by default.
var DefaultExtensions = []string{
	".py", ".md", ".txt", ".rst", ".json", ".yaml", ".yml",
	".js", ".ts", ".jsx", ".tsx", ".html", ".css",
	".sh", ".bash", ".php", ".c", ".h", ".cpp", ".hpp",
	".go", ".rs", ".java", ".rb", ".lua",
}

// Loader walks directories and turns matching files into documents.
type Loader struct {
	extensions map[string]struct{}
	logger     *zap.Logger
}

// New creates a Loader for the given extensions (case-insensitive, leading dot optional).
// An empty list selects DefaultExtensions.
func New(extensions []string, logger *zap.Logger) *Loader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return &Loader{extensions: set, logger: logger}
}

// Accepts reports whether the file name has an allow-listed extension.
func (l *Loader) Accepts(name string) bool {
	_, ok := l.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Check verifies that dir exists and is a directory.
func Check(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("directory is required: %w", domain.ErrInvalidArgument)
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("directory %s does not exist: %w", dir, domain.ErrInvalidArgument)
		}
		return fmt.Errorf("stat directory %s: %w: %w", dir, domain.ErrInvalidArgument, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory: %w", dir, domain.ErrInvalidArgument)
	}
	return nil
}

// Load reads every matching file under dir. Documents keep the walked path
// (dir joined with the relative path) as their origin.
func (l *Loader) Load(ctx context.Context, dir string) ([]document.Document, error) {
	return l.load(ctx, dir, false)
}

// LoadRelative is Load with origins relative to dir.
func (l *Loader) LoadRelative(ctx context.Context, dir string) ([]document.Document, error) {
	return l.load(ctx, dir, true)
}

func (l *Loader) load(ctx context.Context, dir string, relative bool) ([]document.Document, error) {
	if err := Check(dir); err != nil {
		return nil, err
	}

	var docs []document.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || !l.Accepts(d.Name()) {
			return nil
		}

		origin := path
		if relative {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			origin = filepath.ToSlash(rel)
		}

		doc, ok, err := readDocument(path, origin, d)
		if err != nil {
			return err
		}
		if !ok {
			l.logger.Debug("skipping empty file", zap.String("path", path))
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("load directory %s: %w", dir, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("directory %s: %w", dir, domain.ErrNoDocuments)
	}
	return docs, nil
}

func readDocument(path, origin string, d fs.DirEntry) (document.Document, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return document.Document{}, false, fmt.Errorf("read %s: %w", path, err)
	}
	text := strings.ToValidUTF8(string(data), "�")
	if strings.TrimSpace(text) == "" {
		return document.Document{}, false, nil
	}

	info, err := d.Info()
	if err != nil {
		return document.Document{}, false, fmt.Errorf("stat %s: %w", path, err)
	}
	return document.New(origin, text, fileFacts(d.Name(), info)), true, nil
}

func fileFacts(name string, info fs.FileInfo) map[string]string {
	fileType := mime.TypeByExtension(filepath.Ext(name))
	if fileType == "" {
		fileType = "text/plain"
	}
	return map[string]string{
		chunk.MetaFileName:     name,
		chunk.MetaFileType:     fileType,
		chunk.MetaFileSize:     strconv.FormatInt(info.Size(), 10),
		chunk.MetaLastModified: info.ModTime().Format("2006-01-02"),
	}
}
