package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "output", "builds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndRecent(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first, err := l.Record(ctx, Entry{
		Fingerprint: "aaa", Spec: "france.yaml", Output: "output/aaa.svg",
		Features: 1, Duration: 2 * time.Second, CreatedAt: base,
	})
	require.NoError(t, err)
	assert.Len(t, first.ID, 36, "uuid assigned")

	_, err = l.Record(ctx, Entry{
		Fingerprint: "aaa", Spec: "france.yaml", Output: "output/aaa.svg",
		CacheHit: true, CreatedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)
	_, err = l.Record(ctx, Entry{
		Fingerprint: "bbb", Spec: "world.yaml", Output: "output/bbb.svg",
		Features: 177, Forced: true, CreatedAt: base.Add(2 * time.Minute),
	})
	require.NoError(t, err)

	recent, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "bbb", recent[0].Fingerprint)
	assert.True(t, recent[0].Forced)
	assert.Equal(t, 177, recent[0].Features)
	assert.True(t, recent[1].CacheHit)
	assert.True(t, recent[1].CreatedAt.Equal(base.Add(time.Minute)))

	all, err := l.ByFingerprint(ctx, "aaa")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[1].ID)
	assert.Equal(t, 2*time.Second, all[1].Duration)
}

func TestRecent_Empty(t *testing.T) {
	recent, err := openTemp(t).Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "builds.db")
	l, err := Open(path)
	require.NoError(t, err)
	_, err = l.Record(context.Background(), Entry{Fingerprint: "x", Spec: "s", Output: "o"})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	recent, err := l.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
