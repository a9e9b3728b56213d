package cmd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/mapmaker/internal/cache"
	"github.com/agentic-research/mapmaker/internal/pipeline"
	"github.com/agentic-research/mapmaker/internal/publish"
)

// TestSiteFile is where --test copies the built map.
const TestSiteFile = "test-site/map_data.svg"

var (
	makeTest    bool
	makeForce   bool
	makePNG     bool
	makePublish bool
	makeJobs    int
)

func init() {
	makeCmd.Flags().BoolVarP(&makeTest, "test", "t", false, "Copy resulting map to the test site ("+TestSiteFile+")")
	makeCmd.Flags().BoolVarP(&makeForce, "force", "f", false, "Force map to be re-created even if nothing has changed")
	makeCmd.Flags().BoolVar(&makePNG, "png", false, "Also write a PNG preview next to the SVG")
	makeCmd.Flags().BoolVar(&makePublish, "publish", false, "Upload the result to the configured S3 bucket")
	makeCmd.Flags().IntVarP(&makeJobs, "jobs", "j", 2, "Number of spec files built in parallel")
	rootCmd.AddCommand(makeCmd)
}

var makeCmd = &cobra.Command{
	Use:   "make <spec_file>...",
	Short: "Build a map from the given spec file(s), e.g. examples/france.yaml",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if makeTest && len(args) > 1 {
			return fmt.Errorf("--test takes a single spec file, got %d", len(args))
		}

		var pub *publish.Publisher
		if makePublish {
			var err error
			if pub, err = publish.New(settings.S3, logger); err != nil {
				return err
			}
		}

		b, closeLedger, err := newBuilder()
		if err != nil {
			return err
		}
		defer closeLedger()

		ctx := cmd.Context()
		results := make([]*pipeline.Result, len(args))
		errs := make([]error, len(args))

		var g errgroup.Group
		g.SetLimit(max(makeJobs, 1))
		for i, spec := range args {
			i, spec := i, spec
			g.Go(func() error {
				res, err := b.Build(ctx, pipeline.Request{SpecFile: spec, Force: makeForce})
				if err == nil {
					err = afterBuild(ctx, b, pub, res)
				}
				results[i], errs[i] = res, err
				return nil
			})
		}
		_ = g.Wait()

		if quiet {
			return errors.Join(errs...)
		}
		out := cmd.OutOrStdout()
		for i, spec := range args {
			if errs[i] != nil {
				fmt.Fprintf(out, "%s %s: %v\n", errStyle.Render("✗"), spec, errs[i])
				continue
			}
			note := ""
			if results[i].CacheHit {
				note = warnStyle.Render(" (cached)")
			}
			fmt.Fprintf(out, "%s %s → %s%s\n", okStyle.Render("✓"), spec, results[i].OutputPath, note)
		}
		return errors.Join(errs...)
	},
}

// afterBuild runs the optional steps on a finished build.
func afterBuild(ctx context.Context, b *pipeline.Builder, pub *publish.Publisher, res *pipeline.Result) error {
	if makeTest {
		logger.Info("Writing to test-site", zap.String("path", TestSiteFile))
		if err := cache.New(workdir).Store(TestSiteFile, res.SVG); err != nil {
			return fmt.Errorf("write %s: %w", TestSiteFile, err)
		}
	}

	artifacts := map[string][]byte{res.OutputPath: res.SVG}
	if makePNG {
		proj := res.Config.Spec.Parameters.Projection
		w, h := int(math.Round(proj.Width)), int(math.Round(proj.Height))
		pngPath := strings.TrimSuffix(res.OutputPath, filepath.Ext(res.OutputPath)) + ".png"
		if err := b.Renderer().PersistPNG(pngPath, res.SVG, w, h); err != nil {
			return err
		}
		if pub != nil {
			data, _, err := cache.New(workdir).Lookup(pngPath)
			if err != nil {
				return err
			}
			artifacts[pngPath] = data
		}
	}

	if pub != nil {
		for name, data := range artifacts {
			if _, err := pub.Publish(ctx, name, data); err != nil {
				return err
			}
		}
	}
	return nil
}
