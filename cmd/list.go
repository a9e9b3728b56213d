package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/agentic-research/mapmaker/internal/cache"
	"github.com/agentic-research/mapmaker/internal/config"
	"github.com/agentic-research/mapmaker/internal/fetch"
	"github.com/agentic-research/mapmaker/internal/geo"
)

var (
	listColumns  []string
	listKeys     bool
	listFiltered bool
)

func init() {
	listCmd.Flags().StringSliceVarP(&listColumns, "columns", "c", geo.DefaultColumns,
		"The fields to display; plain property names or JSONPath ($.properties.NAME)")
	listCmd.Flags().BoolVarP(&listKeys, "list_columns", "l", false, "Show all columns in this data")
	listCmd.Flags().BoolVar(&listFiltered, "filtered", false, "Apply the spec's filter before listing")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list <spec_file>",
	Short: "List the features in the shape file used by the given spec file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := config.NewResolver(workdir).Resolve(args[0], nil)
		if err != nil {
			return err
		}
		store := cache.New(workdir)
		f := fetch.New(store.FS(), fetch.WithLogger(logger), fetch.WithTimeout(settings.DownloadTimeout))
		if err := f.Ensure(ctx, cfg); err != nil {
			return err
		}
		fc, err := geo.NewFilter(converter(), logger).Info(ctx, cfg, listFiltered)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if listKeys {
			fmt.Fprintln(out, headingStyle.Render("All data properties:"))
			for _, k := range geo.PropertyKeys(fc) {
				fmt.Fprintln(out, k)
			}
			return nil
		}

		cols, err := geo.ParseColumns(append([]string{geo.NameColumn}, listColumns...))
		if err != nil {
			return err
		}
		headers := make([]string, len(cols))
		for i, c := range cols {
			headers[i] = c.Name
		}
		headers[0] = "Name"

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headingStyle.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			}).
			Headers(headers...).
			Rows(geo.Table(fc, cols)...)
		fmt.Fprintln(out, t.String())
		fmt.Fprintf(out, "%d features\n", len(fc.Features))
		return nil
	},
}
