// Package indexer embeds component records and writes them to the
// vector store, skipping records whose content has not changed.
package indexer

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uidex/uidex/internal/component"
	"github.com/uidex/uidex/internal/embed"
	"github.com/uidex/uidex/internal/store"
)

// Status describes what one Index call did.
type Status string

const (
	// StatusInserted means the record was new.
	StatusInserted Status = "inserted"
	// StatusUpdated means the record existed with different content.
	StatusUpdated Status = "updated"
	// StatusUnchanged means the stored content hash matched; nothing
	// was embedded or written.
	StatusUnchanged Status = "unchanged"
)

// Outcome is the per-record result of an indexing operation.
type Outcome struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// BatchResult aggregates the outcomes of one IndexBatch call.
type BatchResult struct {
	Outcomes  []*Outcome `json:"outcomes"`
	Inserted  int        `json:"inserted"`
	Updated   int        `json:"updated"`
	Unchanged int        `json:"unchanged"`
	Failed    int        `json:"failed"`
}

// lockStripes is the number of ID-keyed mutex stripes. Concurrent
// submissions of the same record ID serialize on one stripe.
const lockStripes = 64

// DefaultMaxConcurrent bounds parallel embed+upsert work in a batch.
const DefaultMaxConcurrent = 8

// Indexer writes component records through the embedder into the store.
type Indexer struct {
	store         store.VectorStore
	embedder      embed.Embedder
	logger        *slog.Logger
	maxConcurrent int

	locks [lockStripes]sync.Mutex
	now   func() time.Time
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithMaxConcurrent sets the batch parallelism bound.
func WithMaxConcurrent(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.maxConcurrent = n
		}
	}
}

// New creates an Indexer over the given store and embedder.
func New(vs store.VectorStore, embedder embed.Embedder, logger *slog.Logger, opts ...Option) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	ix := &Indexer{
		store:         vs,
		embedder:      embedder,
		logger:        logger,
		maxConcurrent: DefaultMaxConcurrent,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

func (ix *Indexer) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &ix.locks[h.Sum32()%lockStripes]
}

// Index embeds one record and upserts it. Records whose stored content
// hash already matches are left untouched.
func (ix *Indexer) Index(ctx context.Context, rec *component.Record) (*Outcome, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	mu := ix.lockFor(rec.ID)
	mu.Lock()
	defer mu.Unlock()

	existing, found, err := ix.store.Get(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if found && existing.ContentHash == rec.ContentHash {
		ix.logger.Debug("record unchanged, skipping",
			slog.String("id", rec.ID),
			slog.String("name", rec.Name))
		return &Outcome{ID: rec.ID, Name: rec.Name, Status: StatusUnchanged}, nil
	}

	vector, err := ix.embedder.Embed(ctx, rec.EmbeddingText())
	if err != nil {
		return nil, err
	}

	stamped := rec.Clone()
	stamped.IndexedAt = ix.now().UTC()
	if err := ix.store.Upsert(ctx, stamped, vector); err != nil {
		return nil, err
	}

	status := StatusInserted
	if found {
		status = StatusUpdated
	}
	ix.logger.Debug("record indexed",
		slog.String("id", rec.ID),
		slog.String("name", rec.Name),
		slog.String("status", string(status)))

	return &Outcome{ID: rec.ID, Name: rec.Name, Status: status}, nil
}

// IndexBatch indexes records concurrently. One record's failure never
// aborts its siblings; failures surface in the per-record outcomes.
// The returned error is non-nil only when the context is canceled.
func (ix *Indexer) IndexBatch(ctx context.Context, recs []*component.Record) (*BatchResult, error) {
	outcomes := make([]*Outcome, len(recs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.maxConcurrent)

	for i, rec := range recs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			outcome, err := ix.Index(gctx, rec)
			if err != nil {
				ix.logger.Warn("record failed to index",
					slog.String("id", rec.ID),
					slog.String("name", rec.Name),
					slog.String("error", err.Error()))
				outcomes[i] = &Outcome{ID: rec.ID, Name: rec.Name, Error: err.Error()}
				return nil
			}
			outcomes[i] = outcome
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BatchResult{Outcomes: outcomes}
	for _, outcome := range outcomes {
		switch {
		case outcome.Error != "":
			result.Failed++
		case outcome.Status == StatusInserted:
			result.Inserted++
		case outcome.Status == StatusUpdated:
			result.Updated++
		case outcome.Status == StatusUnchanged:
			result.Unchanged++
		}
	}
	return result, nil
}
