package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedderStatic(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Options{Provider: ProviderStatic})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	// Static embedders come back wrapped with the LRU cache.
	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	assert.IsType(t, &StaticEmbedder{}, cached.Inner())
}

func TestNewEmbedderAutoFallsBackToStatic(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Options{
		Provider: ProviderAuto,
		Host:     "http://localhost:1", // nothing listening
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, "static-hash-v1", e.ModelName())
}

func TestNewEmbedderUnknownProvider(t *testing.T) {
	_, err := NewEmbedder(context.Background(), Options{Provider: "quantum"})
	assert.Error(t, err)
}

func TestNewEmbedderEnvOverride(t *testing.T) {
	t.Setenv("DOCINDEX_EMBEDDINGS_PROVIDER", "static")

	e, err := NewEmbedder(context.Background(), Options{Provider: ProviderOllama, Host: "http://localhost:1"})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, "static-hash-v1", e.ModelName())
}

func TestNewEmbedderCacheDisabled(t *testing.T) {
	t.Setenv("DOCINDEX_EMBED_CACHE", "false")

	e, err := NewEmbedder(context.Background(), Options{Provider: ProviderStatic})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.IsType(t, &StaticEmbedder{}, e)
}
