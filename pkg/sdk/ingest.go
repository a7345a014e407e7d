package cortex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	api "github.com/kailas-cloud/cortex/internal/transport/chi"
)

// IngestService loads documents into collections.
type IngestService struct {
	c *Client
}

// Directory ingests a directory on the server's filesystem, creating the
// collection when absent. Documents the collection already holds are skipped.
func (s *IngestService) Directory(ctx context.Context, collection, dir string) (_ IngestResult, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("ingest.directory", start, err) }()

	body := api.IngestDirectoryRequest{Collection: collection, Directory: dir}
	var resp api.IngestResponse
	if err = s.c.doJSON(ctx, http.MethodPost, "/ingest/directory", nil, body, &resp); err != nil {
		return IngestResult{}, fmt.Errorf("ingest directory: %w", err)
	}
	return fromIngestResponse(resp), nil
}

// Files uploads files and ingests them into the collection. Files are
// identified by name, so uploading the same content again is skipped.
func (s *IngestService) Files(ctx context.Context, collection string, files []File) (_ IngestResult, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("ingest.files", start, err) }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return IngestResult{}, fmt.Errorf("ingest files: %w", err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return IngestResult{}, fmt.Errorf("ingest files: read %s: %w", f.Name, err)
		}
	}
	if err = mw.Close(); err != nil {
		return IngestResult{}, fmt.Errorf("ingest files: %w", err)
	}

	var resp api.IngestResponse
	err = s.c.do(ctx, http.MethodPost, "/ingest/files/"+collectionName(collection), nil, &buf, mw.FormDataContentType(), &resp)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest files: %w", err)
	}
	return fromIngestResponse(resp), nil
}

func collectionName(name string) string {
	return collectionPath(name)[len("/collections/"):]
}

func fromIngestResponse(r api.IngestResponse) IngestResult {
	return IngestResult{
		Collection:  r.Collection,
		IngestID:    r.IngestID,
		Ingested:    r.DocumentsIngested,
		Skipped:     r.DocumentsSkipped,
		TotalChunks: r.TotalChunks,
		Message:     r.Message,
	}
}
