// Package ledger tracks which document fingerprints a collection already holds.
package ledger

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/cortex/internal/domain/chunk"
)

// Source streams every persisted chunk of a collection.
type Source interface {
	Walk(ctx context.Context, collection string, fn chunk.WalkFunc) error
}

// Ledger is a set of document fingerprints. It is not safe for concurrent use;
// ingestion holds the collection lock while using one.
type Ledger struct {
	seen map[string]struct{}
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{seen: make(map[string]struct{})}
}

// Load rebuilds the ledger of a collection from its persisted chunks.
// A fingerprint is admitted only once all chunks its document produced are
// present, so documents cut short by a failed write get ingested again.
// Chunks are counted by position, so a chunk reported twice counts once.
func Load(ctx context.Context, src Source, collection string) (*Ledger, error) {
	type tally struct {
		have map[int]struct{}
		want int
	}
	counts := make(map[string]*tally)

	err := src.Walk(ctx, collection, func(batch []chunk.Chunk) error {
		for i := range batch {
			md := batch[i].Metadata
			if md.DocFingerprint == "" {
				continue
			}
			t, ok := counts[md.DocFingerprint]
			if !ok {
				t = &tally{have: make(map[int]struct{})}
				counts[md.DocFingerprint] = t
			}
			t.have[md.Position] = struct{}{}
			t.want = max(t.want, md.DocChunks)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load ledger of %s: %w", collection, err)
	}

	l := New()
	for fp, t := range counts {
		if len(t.have) >= t.want {
			l.seen[fp] = struct{}{}
		}
	}
	return l, nil
}

// Has reports whether fp is recorded.
func (l *Ledger) Has(fp string) bool {
	_, ok := l.seen[fp]
	return ok
}

// Add records fp and reports whether it was new.
func (l *Ledger) Add(fp string) bool {
	if l.Has(fp) {
		return false
	}
	l.seen[fp] = struct{}{}
	return true
}

// Len returns the number of recorded fingerprints.
func (l *Ledger) Len() int { return len(l.seen) }
