// Package fetch makes a spec's shape data available locally, downloading and
// unpacking it on first use.
package fetch

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"

	"github.com/agentic-research/mapmaker/api"
	"github.com/agentic-research/mapmaker/internal/config"
	"github.com/agentic-research/mapmaker/internal/logging"
)

// DefaultTimeout bounds one download when no timeout is configured.
const DefaultTimeout = 10 * time.Minute

// Fetcher downloads datasets into a filesystem rooted at the working
// directory.
type Fetcher struct {
	fs      billy.Filesystem
	client  *http.Client
	timeout time.Duration
	log     *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client. Defaults to http.DefaultClient.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout bounds each download. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.log = logging.OrNop(l) }
}

// New returns a Fetcher writing into fs.
func New(fs billy.Filesystem, opts ...Option) *Fetcher {
	f := &Fetcher{
		fs:      fs,
		client:  http.DefaultClient,
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Ensure makes cfg's shape directory exist. It does nothing when the
// directory is already present. The directory appears all at once or not at
// all; every failure is a DownloadError.
func (f *Fetcher) Ensure(ctx context.Context, cfg *config.Resolved) error {
	dir := cfg.Derived.ShapeDir
	log := f.log.With(zap.String("path", dir))

	ok, err := f.exists(dir)
	if err != nil {
		return api.Errorf(api.KindDownload, "stat %s: %w", dir, err)
	}
	if ok {
		log.Info("Data already available")
		return nil
	}

	parent := filepath.Dir(dir)
	if err := f.fs.MkdirAll(parent, 0o755); err != nil {
		return api.Errorf(api.KindDownload, "create %s: %w", parent, err)
	}

	url := cfg.Derived.DownloadURL
	log.Info("Downloading data", zap.String("url", url))
	start := time.Now()
	archive, err := f.download(ctx, url, parent)
	if err != nil {
		return api.Errorf(api.KindDownload, "download %s: %w", url, err)
	}
	defer func() { _ = f.fs.Remove(archive) }()
	log.Debug("Download complete", zap.Duration("elapsed", time.Since(start)))

	tmpDir, err := util.TempDir(f.fs, parent, "."+filepath.Base(dir)+".tmp-")
	if err != nil {
		return api.Errorf(api.KindDownload, "create temp dir: %w", err)
	}
	if err := f.unpack(archive, cfg.Spec.ShapeData.Filename, tmpDir); err != nil {
		_ = util.RemoveAll(f.fs, tmpDir)
		return api.Errorf(api.KindDownload, "unpack %s: %w", url, err)
	}
	if err := f.fs.Rename(tmpDir, dir); err != nil {
		_ = util.RemoveAll(f.fs, tmpDir)
		// Another process may have finished the same download first.
		if ok, _ := f.exists(dir); ok {
			log.Debug("Data appeared concurrently")
			return nil
		}
		return api.Errorf(api.KindDownload, "move data into %s: %w", dir, err)
	}
	log.Info("Data ready")
	return nil
}

func (f *Fetcher) exists(p string) (bool, error) {
	_, err := f.fs.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// download streams url into a temp file under dir and returns its name.
func (f *Fetcher) download(ctx context.Context, url, dir string) (string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := f.fs.TempFile(dir, ".download-")
	if err != nil {
		return "", err
	}
	name := tmp.Name()
	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = f.fs.Remove(name)
		return "", err
	}
	f.log.Debug("Downloaded", zap.String("url", url), zap.Int64("bytes", n))
	return name, nil
}

// unpack extracts a zip archive into dest, or copies any other payload into
// dest under filename.
func (f *Fetcher) unpack(archive, filename, dest string) error {
	if !strings.EqualFold(path.Ext(filename), ".zip") {
		return f.copyFile(archive, f.fs.Join(dest, path.Base(filename)))
	}

	src, err := f.fs.Open(archive)
	if err != nil {
		return err
	}
	defer src.Close()
	st, err := f.fs.Stat(archive)
	if err != nil {
		return err
	}
	zr, err := zip.NewReader(src, st.Size())
	if err != nil {
		return err
	}
	for _, e := range zr.File {
		if err := f.extract(e, dest); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fetcher) extract(e *zip.File, dest string) error {
	name, err := entryPath(e.Name)
	if err != nil || name == "" {
		return err
	}
	target := f.fs.Join(dest, name)
	if e.FileInfo().IsDir() {
		return f.fs.MkdirAll(target, 0o755)
	}
	if err := f.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := e.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", e.Name, err)
	}
	defer rc.Close()
	out, err := f.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("extract %s: %w", e.Name, err)
	}
	return out.Close()
}

func (f *Fetcher) copyFile(from, to string) error {
	src, err := f.fs.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := f.fs.Create(to)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// entryPath cleans a zip entry name and rejects names that would land
// outside the extraction directory.
func entryPath(name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if clean == "." {
		return "", nil
	}
	if clean == ".." || path.IsAbs(clean) || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("illegal path in archive: %q", name)
	}
	return filepath.FromSlash(clean), nil
}
