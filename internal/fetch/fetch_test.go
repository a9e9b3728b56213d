package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/mapmaker/api"
	"github.com/agentic-research/mapmaker/internal/config"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type server struct {
	*httptest.Server
	hits atomic.Int32
}

func serve(t *testing.T, status int, body []byte) *server {
	t.Helper()
	s := &server{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func resolvedFor(url, filename string) *config.Resolved {
	dir := filepath.Join("data", "natural_earth", "110m", "ne_110m")
	return &config.Resolved{
		Spec:    api.Spec{ShapeData: api.ShapeData{Repo: "natural_earth", Base: "110m", Filename: filename}},
		Derived: config.Derived{ShapeDir: dir, ShapeFile: filepath.Join(dir, "ne_110m.shp"), DownloadURL: url},
	}
}

func TestEnsure_DownloadsAndExtracts(t *testing.T) {
	srv := serve(t, http.StatusOK, zipBytes(t, map[string]string{
		"ne_110m.shp":      "shapes",
		"ne_110m.dbf":      "attrs",
		"docs/readme.html": "hello",
	}))
	root := t.TempDir()
	f := New(osfs.New(root))
	cfg := resolvedFor(srv.URL+"/ne_110m.zip", "ne_110m.zip")

	require.NoError(t, f.Ensure(context.Background(), cfg))

	got, err := os.ReadFile(filepath.Join(root, cfg.Derived.ShapeFile))
	require.NoError(t, err)
	assert.Equal(t, "shapes", string(got))
	got, err = os.ReadFile(filepath.Join(root, cfg.Derived.ShapeDir, "docs", "readme.html"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	entries, err := os.ReadDir(filepath.Join(root, filepath.Dir(cfg.Derived.ShapeDir)))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp archive and temp dir are cleaned up")
	assert.Equal(t, "ne_110m", entries[0].Name())

	// Second call is a no-op.
	require.NoError(t, f.Ensure(context.Background(), cfg))
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestEnsure_ExistingDirSkipsDownload(t *testing.T) {
	srv := serve(t, http.StatusOK, nil)
	root := t.TempDir()
	cfg := resolvedFor(srv.URL+"/x.zip", "x.zip")
	require.NoError(t, os.MkdirAll(filepath.Join(root, cfg.Derived.ShapeDir), 0o755))

	require.NoError(t, New(osfs.New(root)).Ensure(context.Background(), cfg))
	assert.Zero(t, srv.hits.Load())
}

func TestEnsure_NonZipStoredAsIs(t *testing.T) {
	srv := serve(t, http.StatusOK, []byte(`{"type":"FeatureCollection","features":[]}`))
	root := t.TempDir()
	cfg := resolvedFor(srv.URL+"/ne_110m.geojson", "ne_110m.geojson")

	require.NoError(t, New(osfs.New(root)).Ensure(context.Background(), cfg))
	got, err := os.ReadFile(filepath.Join(root, cfg.Derived.ShapeDir, "ne_110m.geojson"))
	require.NoError(t, err)
	assert.Contains(t, string(got), "FeatureCollection")
}

func TestEnsure_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   []byte
	}{
		{name: "not found", status: http.StatusNotFound, body: []byte("nope")},
		{name: "server error", status: http.StatusInternalServerError},
		{name: "corrupt archive", status: http.StatusOK, body: []byte("PK not really")},
		{name: "zip slip", status: http.StatusOK, body: zipBytes(t, map[string]string{"../../evil.txt": "x"})},
		{name: "absolute entry", status: http.StatusOK, body: zipBytes(t, map[string]string{"/etc/evil": "x"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)
			root := t.TempDir()
			cfg := resolvedFor(srv.URL+"/ne_110m.zip", "ne_110m.zip")

			err := New(osfs.New(root)).Ensure(context.Background(), cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, api.ErrDownload)

			_, statErr := os.Stat(filepath.Join(root, cfg.Derived.ShapeDir))
			assert.True(t, os.IsNotExist(statErr), "no partial shape dir")
			entries, err := os.ReadDir(filepath.Join(root, filepath.Dir(cfg.Derived.ShapeDir)))
			require.NoError(t, err)
			assert.Empty(t, entries, "temp state removed")
			_, statErr = os.Stat(filepath.Join(root, "data", "evil.txt"))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestEnsure_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	f := New(osfs.New(t.TempDir()), WithTimeout(50*time.Millisecond))
	err := f.Ensure(context.Background(), resolvedFor(srv.URL+"/slow.zip", "slow.zip"))
	assert.ErrorIs(t, err, api.ErrDownload)
}

func TestEntryPath(t *testing.T) {
	for in, want := range map[string]string{
		"a/b.shp":      filepath.Join("a", "b.shp"),
		"./a.shp":      "a.shp",
		"dir/../a":     "a",
		"./":           "",
		`win\path.shp`: filepath.Join("win", "path.shp"),
	} {
		got, err := entryPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"..", "../x", "a/../../x", "/abs"} {
		_, err := entryPath(bad)
		assert.Error(t, err, bad)
	}
}
