package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/mapmaker/internal/projection"
)

// Every shipped example must resolve and describe a valid projection.
func TestExamplesResolve(t *testing.T) {
	dir := filepath.Join("..", "..", "examples")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	r := NewResolver(dir)
	for _, e := range entries {
		t.Run(e.Name(), func(t *testing.T) {
			cfg, err := r.Resolve(e.Name(), nil)
			require.NoError(t, err)
			assert.NotEmpty(t, cfg.Derived.DownloadURL)

			_, err = projection.New(cfg.Spec.Parameters.Projection)
			assert.NoError(t, err)
		})
	}
}
