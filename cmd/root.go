package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentic-research/mapmaker/internal/config"
	"github.com/agentic-research/mapmaker/internal/fetch"
	"github.com/agentic-research/mapmaker/internal/geo"
	"github.com/agentic-research/mapmaker/internal/ledger"
	"github.com/agentic-research/mapmaker/internal/logging"
	"github.com/agentic-research/mapmaker/internal/pipeline"
)

var (
	debug   bool
	quiet   bool
	workdir string

	settings config.Settings
	logger   = zap.NewNop()
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	errStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Extra debug information while building the map")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Don't print any output while building the map. Overrides --debug. Errors still go to stderr.")
	rootCmd.PersistentFlags().StringVarP(&workdir, "workdir", "w", "", "Directory holding data/ and output/ (default $MAPMAKER_WORKDIR or .)")
}

var rootCmd = &cobra.Command{
	Use:           "mapmaker",
	Short:         "Build SVG maps from Natural Earth shape data",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.LoadSettings()
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		settings = s

		level := s.LogLevel
		if debug {
			level = config.LogDebug
		}
		if quiet {
			level = config.LogNone
		}
		logger, err = logging.New(level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if !cmd.Flags().Changed("workdir") {
			workdir = s.Workdir
		}
		if workdir == "" {
			workdir = "."
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render(err.Error()))
		stop()
		os.Exit(1)
	}
}

// converter returns the ogr2ogr converter configured by the environment.
var converter = func() geo.Converter {
	return &geo.OGR2OGR{Bin: settings.OGR2OGR, Timeout: settings.ConvertTimeout}
}

// newBuilder wires a pipeline for the current workdir, with the build
// ledger attached. The returned func closes the ledger.
func newBuilder(opts ...pipeline.Option) (*pipeline.Builder, func(), error) {
	l, err := ledger.Open(filepath.Join(workdir, ledger.DefaultFile))
	if err != nil {
		return nil, nil, err
	}
	all := append([]pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithConverter(converter()),
		pipeline.WithFetchOptions(fetch.WithTimeout(settings.DownloadTimeout)),
		pipeline.WithLedger(l),
	}, opts...)
	return pipeline.New(workdir, all...), func() { _ = l.Close() }, nil
}
