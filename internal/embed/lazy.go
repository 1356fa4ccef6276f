package embed

import (
	"context"
	"sync"
)

// LazyEmbedder defers provider construction until the first call that
// needs it, then memoizes the result for the life of the process. It
// lets wiring code hand out an Embedder for paths that may never run,
// such as re-ranking, without paying the provider handshake up front.
type LazyEmbedder struct {
	once sync.Once

	opts  Options
	inner Embedder
	err   error
}

// NewLazyEmbedder returns a memoized embedder built from opts on first
// use.
func NewLazyEmbedder(opts Options) *LazyEmbedder {
	return &LazyEmbedder{opts: opts}
}

func (l *LazyEmbedder) init(ctx context.Context) (Embedder, error) {
	l.once.Do(func() {
		l.inner, l.err = NewEmbedder(ctx, l.opts)
	})
	return l.inner, l.err
}

// EmbedDocuments implements Embedder.
func (l *LazyEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	inner, err := l.init(ctx)
	if err != nil {
		return nil, err
	}
	return inner.EmbedDocuments(ctx, texts)
}

// EmbedQuery implements Embedder.
func (l *LazyEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	inner, err := l.init(ctx)
	if err != nil {
		return nil, err
	}
	return inner.EmbedQuery(ctx, text)
}

// Dimensions reports the provider dimension, constructing it if
// needed.
func (l *LazyEmbedder) Dimensions() int {
	inner, err := l.init(context.Background())
	if err != nil {
		return 0
	}
	return inner.Dimensions()
}

// ModelName returns the configured model without forcing construction.
func (l *LazyEmbedder) ModelName() string {
	if l.inner != nil {
		return l.inner.ModelName()
	}
	return l.opts.Model
}

// Available implements Embedder.
func (l *LazyEmbedder) Available(ctx context.Context) bool {
	inner, err := l.init(ctx)
	if err != nil {
		return false
	}
	return inner.Available(ctx)
}

// Close releases the inner embedder when it was built.
func (l *LazyEmbedder) Close() error {
	if l.inner != nil {
		return l.inner.Close()
	}
	return nil
}
