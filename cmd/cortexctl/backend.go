package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kailas-cloud/cortex/internal/app"
	ingestuc "github.com/kailas-cloud/cortex/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/cortex/internal/usecase/query"
	cortex "github.com/kailas-cloud/cortex/pkg/sdk"
)

// backend is what the subcommands drive: an embedded app talking to the
// store directly, or a running server reached over HTTP.
type backend interface {
	EnsureCollection(ctx context.Context, name, description string) error
	IngestDirectory(ctx context.Context, name, dir string) (ingestuc.Result, error)
	List(ctx context.Context) ([]collectionRow, error)
	Delete(ctx context.Context, name string) error
	Clear(ctx context.Context, name string) error
	Query(ctx context.Context, req queryuc.Request) (answer, error)
	Close()
}

type collectionRow struct {
	Name        string
	Description string
	Source      string
	Count       int
}

type answer struct {
	Text    string
	Sources []answerSource
}

type answerSource struct {
	Path  string
	Score float64
	Text  string
}

type localBackend struct {
	app *app.App
}

var _ backend = (*localBackend)(nil)

func (b *localBackend) EnsureCollection(ctx context.Context, name, description string) error {
	_, err := b.app.EnsureCollection(ctx, name, description)
	return err
}

func (b *localBackend) IngestDirectory(ctx context.Context, name, dir string) (ingestuc.Result, error) {
	return b.app.Ingest.Directory(ctx, name, dir)
}

func (b *localBackend) List(ctx context.Context) ([]collectionRow, error) {
	summaries, err := b.app.Collections.List(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]collectionRow, len(summaries))
	for i, s := range summaries {
		rows[i] = collectionRow{
			Name:        s.Collection.Name(),
			Description: s.Collection.Description(),
			Source:      s.Collection.Source(),
			Count:       s.Count,
		}
	}
	return rows, nil
}

func (b *localBackend) Delete(ctx context.Context, name string) error {
	return b.app.Collections.Delete(ctx, name)
}

func (b *localBackend) Clear(ctx context.Context, name string) error {
	_, err := b.app.Collections.Clear(ctx, name)
	return err
}

func (b *localBackend) Query(ctx context.Context, req queryuc.Request) (answer, error) {
	res, err := b.app.Query.Query(ctx, req)
	if err != nil {
		return answer{}, err
	}
	out := answer{Text: res.Text}
	for _, src := range res.Sources {
		out.Sources = append(out.Sources, answerSource{Path: src.Metadata.OriginPath, Score: src.Score, Text: src.Text})
	}
	return out, nil
}

func (b *localBackend) Close() { b.app.Close() }

// remoteBackend sends directory paths to the server as absolute paths, so
// the server must see the same filesystem.
type remoteBackend struct {
	client *cortex.Client
}

var _ backend = (*remoteBackend)(nil)

func (b *remoteBackend) EnsureCollection(ctx context.Context, name, description string) error {
	_, _, err := b.client.Collections().Create(ctx, name, description)
	return err
}

func (b *remoteBackend) IngestDirectory(ctx context.Context, name, dir string) (ingestuc.Result, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ingestuc.Result{}, fmt.Errorf("resolve %s: %w", dir, err)
	}
	res, err := b.client.Ingest().Directory(ctx, name, abs)
	if err != nil {
		return ingestuc.Result{}, err
	}
	return ingestuc.Result{
		Collection:  res.Collection,
		IngestID:    res.IngestID,
		Ingested:    res.Ingested,
		Skipped:     res.Skipped,
		TotalChunks: res.TotalChunks,
	}, nil
}

func (b *remoteBackend) List(ctx context.Context) ([]collectionRow, error) {
	cols, err := b.client.Collections().List(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]collectionRow, len(cols))
	for i, col := range cols {
		rows[i] = collectionRow{Name: col.Name, Description: col.Description, Source: col.Source, Count: col.Count}
	}
	return rows, nil
}

func (b *remoteBackend) Delete(ctx context.Context, name string) error {
	return b.client.Collections().Delete(ctx, name)
}

func (b *remoteBackend) Clear(ctx context.Context, name string) error {
	return b.client.Collections().Clear(ctx, name)
}

func (b *remoteBackend) Query(ctx context.Context, req queryuc.Request) (answer, error) {
	res, err := b.client.Query(ctx, cortex.QueryRequest{
		Query:          req.Text,
		Collection:     req.Collection,
		TopK:           req.TopK,
		IncludeSources: &req.IncludeSources,
	})
	if err != nil {
		return answer{}, err
	}
	out := answer{Text: res.Text}
	for _, src := range res.Sources {
		path, _ := src.Metadata["file_path"].(string)
		out.Sources = append(out.Sources, answerSource{Path: path, Score: src.Score, Text: src.Text})
	}
	return out, nil
}

func (b *remoteBackend) Close() {}
