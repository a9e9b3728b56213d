package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/mapmaker/api"
)

type outcome struct {
	res *Result
	err error
}

func TestWatch_RebuildsOnChange(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outcomes := make(chan outcome, 8)
	done := make(chan error, 1)
	go func() {
		done <- h.b.Watch(ctx, Request{SpecFile: "france.yaml"}, func(r *Result, err error) {
			outcomes <- outcome{r, err}
		})
	}()

	next := func() outcome {
		t.Helper()
		select {
		case o := <-outcomes:
			return o
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for build")
			return outcome{}
		}
	}

	first := next()
	require.NoError(t, first.err)
	assert.False(t, first.res.CacheHit, "watch builds are forced")

	changed := strings.Replace(franceSpec, "scale: 100", "scale: 120", 1)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "france.yaml"), []byte(changed), 0o644))

	second := next()
	require.NoError(t, second.err)
	assert.NotEqual(t, first.res.Fingerprint, second.res.Fingerprint)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatch_NeedsSpecFile(t *testing.T) {
	h := newHarness(t)
	err := h.b.Watch(context.Background(), Request{}, func(*Result, error) {})
	assert.ErrorIs(t, err, api.ErrConfig)
}
