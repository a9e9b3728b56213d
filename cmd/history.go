package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/agentic-research/mapmaker/internal/ledger"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "number", "n", 20, "How many builds to show")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent builds from the build ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := ledger.Open(filepath.Join(workdir, ledger.DefaultFile))
		if err != nil {
			return err
		}
		defer l.Close()

		entries, err := l.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No builds recorded yet.")
			return nil
		}

		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			how := "built"
			switch {
			case e.CacheHit:
				how = "cached"
			case e.Forced:
				how = "forced"
			}
			rows = append(rows, []string{
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				e.Spec,
				e.Fingerprint[:min(len(e.Fingerprint), 12)],
				how,
				fmt.Sprint(e.Features),
				e.Duration.Round(1e6).String(),
			})
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headingStyle.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			}).
			Headers("When", "Spec", "Fingerprint", "How", "Features", "Took").
			Rows(rows...)
		fmt.Fprintln(out, t.String())
		return nil
	},
}
