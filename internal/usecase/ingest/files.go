package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cortex/internal/domain"
	"github.com/kailas-cloud/cortex/internal/domain/document"
)

// File is one uploaded file.
type File struct {
	Name    string
	Content io.Reader
}

// Files ingests uploaded files. They are written under a temporary
// directory by base name and loaded with the name as origin, so uploading
// the same file again is deduplicated. The collection source is not changed.
func (s *Service) Files(ctx context.Context, name string, files []File) (Result, error) {
	if len(files) == 0 {
		return Result{}, fmt.Errorf("ingest into %s: no files uploaded: %w", name, domain.ErrInvalidArgument)
	}

	dir, err := os.MkdirTemp("", "cortex-upload-*")
	if err != nil {
		return Result{}, fmt.Errorf("create upload directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("failed to remove upload directory", zap.String("directory", dir), zap.Error(err))
		}
	}()

	for _, f := range files {
		if err := materialize(dir, f); err != nil {
			return Result{}, fmt.Errorf("ingest into %s: %w", name, err)
		}
	}

	return s.run(ctx, name, "", func(ctx context.Context) ([]document.Document, error) {
		return s.loader.LoadRelative(ctx, dir)
	})
}

func materialize(dir string, f File) error {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(f.Name, "\\", "/")))
	if base == "/" || base == "." || base == "" {
		return fmt.Errorf("invalid file name %q: %w", f.Name, domain.ErrInvalidArgument)
	}

	out, err := os.Create(filepath.Join(dir, base))
	if err != nil {
		return fmt.Errorf("write %s: %w", base, err)
	}
	if _, err := io.Copy(out, f.Content); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", base, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("write %s: %w", base, err)
	}
	return nil
}
