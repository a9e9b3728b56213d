package geo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
)

// OGR2OGR runs GDAL's ogr2ogr, writing to stdout.
type OGR2OGR struct {
	// Bin is the executable; empty means "ogr2ogr" on PATH.
	Bin string
	// Timeout bounds one invocation; zero means no limit beyond ctx.
	Timeout time.Duration
}

// Args returns the command line for req, without the executable.
func (o *OGR2OGR) Args(req Request) []string {
	args := []string{"-f", req.Format, "/vsistdout/"}
	if req.Where != "" {
		args = append(args, "-where", req.Where)
	}
	return append(args, req.Source)
}

// Convert implements Converter.
func (o *OGR2OGR) Convert(ctx context.Context, req Request) (*geojson.FeatureCollection, error) {
	if req.Format == "" {
		req.Format = FormatGeoJSON
	}
	if !strings.EqualFold(req.Format, FormatGeoJSON) {
		return nil, fmt.Errorf("unsupported output format %q", req.Format)
	}
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	bin := o.Bin
	if bin == "" {
		bin = "ogr2ogr"
	}
	cmd := exec.CommandContext(ctx, bin, o.Args(req)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s timed out after %s", bin, o.Timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s failed: %w", bin, err)
		}
		return nil, fmt.Errorf("%s failed: %w: %s", bin, err, msg)
	}

	fc, err := geojson.UnmarshalFeatureCollection(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("decode %s output: %w", bin, err)
	}
	return fc, nil
}
