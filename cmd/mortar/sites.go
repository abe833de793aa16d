package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/sites"
)

func newSitesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List registered site adapters",
		RunE: func(*cobra.Command, []string) error {
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Name", "Strategy", "Axes", "Units"})
			for _, name := range sites.Names() {
				site, _ := sites.Lookup(name)
				axes := ""
				for i, ax := range site.Axes {
					if i > 0 {
						axes += ", "
					}
					axes += ax.Name
				}
				t.AppendRow(table.Row{name, string(site.Pagination.Kind), axes, len(site.Units(nil))})
			}
			t.Render()
			return nil
		},
	}
}
