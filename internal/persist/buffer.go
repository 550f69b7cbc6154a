// Package persist implements the per-entity-kind write-behind buffers
// used during RF2 ingestion (§4.3): save-and-flush at a fixed
// interval, with a dependency latch ensuring core components land in
// the store before any buffer depending on them flushes.
package persist

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ontocore/ontocore-server/internal/dbctx"
	"github.com/ontocore/ontocore-server/internal/logger"
)

// FlushInterval is the fixed batch size at which a buffer flushes
// itself (§4.3).
const FlushInterval = 5000

// Persister writes a batch of entities of kind E through to the store.
type Persister[E any] func(dbc dbctx.Context, batch []E) error

// Buffer accumulates entities of kind E and flushes them in batches of
// FlushInterval. save/flush are single-writer per the ingestion
// coordinator's contract (§5 "per-buffer discipline"); Buffer itself
// still serialises access with a mutex so a misbehaving caller cannot
// corrupt state, matching the teacher's defensive-locking style.
type Buffer[E any] struct {
	mu        sync.Mutex
	kind      string
	items     []E
	persist   Persister[E]
	log       *logger.Logger
}

func NewBuffer[E any](kind string, persist Persister[E], baseLog *logger.Logger) *Buffer[E] {
	return &Buffer[E]{
		kind:    kind,
		persist: persist,
		log:     baseLog.With("buffer", kind),
	}
}

// Save appends entity, flushing immediately once the buffer reaches
// FlushInterval.
func (b *Buffer[E]) Save(dbc dbctx.Context, entity E) error {
	b.mu.Lock()
	b.items = append(b.items, entity)
	shouldFlush := len(b.items) >= FlushInterval
	b.mu.Unlock()
	if shouldFlush {
		return b.Flush(dbc)
	}
	return nil
}

// Flush persists whatever is currently buffered and clears it.
func (b *Buffer[E]) Flush(dbc dbctx.Context) error {
	b.mu.Lock()
	batch := b.items
	b.items = nil
	b.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	b.log.Debug("flushing buffer", "count", len(batch))
	return b.persist(dbc, batch)
}

// Len reports the number of buffered, not-yet-flushed entities.
func (b *Buffer[E]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// CoreLatch is the one-way {false → true} flag guarding dependent
// buffers: it must be set before any dependent buffer's first flush,
// and its transition is visible to every observer without additional
// locking (§5 "per-buffer discipline").
type CoreLatch struct {
	flushed atomic.Bool
}

func (l *CoreLatch) MarkFlushed() { l.flushed.Store(true) }
func (l *CoreLatch) Flushed() bool { return l.flushed.Load() }

// Flusher is the minimal shape FlushAll needs from a buffer,
// independent of its entity type.
type Flusher interface {
	Flush(dbc dbctx.Context) error
}

// FlushAll flushes every core buffer first (sequentially, so the
// dependency latch is set only once every core buffer's writes are
// durable), then fans the dependent buffers out concurrently via
// errgroup — mirroring the teacher's worker-pool fan-out style for a
// batch of independent I/O.
func FlushAll(dbc dbctx.Context, latch *CoreLatch, core []Flusher, dependents []Flusher) error {
	for _, c := range core {
		if err := c.Flush(dbc); err != nil {
			return err
		}
	}
	latch.MarkFlushed()

	g, ctx := errgroup.WithContext(dbc.Ctx)
	scoped := dbctx.New(ctx, dbc.Tx)
	for _, d := range dependents {
		d := d
		g.Go(func() error { return d.Flush(scoped) })
	}
	return g.Wait()
}
