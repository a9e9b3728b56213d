package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/mapmaker/internal/pipeline"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <spec_file>",
	Short: "Rebuild the map every time the spec file changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, closeLedger, err := newBuilder()
		if err != nil {
			return err
		}
		defer closeLedger()

		out := cmd.OutOrStdout()
		if !quiet {
			fmt.Fprintln(out, headingStyle.Render("Watching "+args[0]+" (Ctrl-C to stop)"))
		}
		return b.Watch(cmd.Context(), pipeline.Request{SpecFile: args[0]}, func(res *pipeline.Result, err error) {
			if quiet {
				return
			}
			if err != nil {
				fmt.Fprintf(out, "%s %v\n", errStyle.Render("✗"), err)
				return
			}
			fmt.Fprintf(out, "%s %s\n", okStyle.Render("✓"), res.OutputPath)
		})
	},
}
