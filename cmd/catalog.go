package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/otakuflix/adata/pkg/pipeline"
	"github.com/spf13/cobra"
)

// catalogCmd prints a summary of the stored catalog.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Prints statistics about the stored catalog.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := newReadEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		c, version, err := env.store.Read(cmd.Context())
		if err != nil {
			return err
		}
		if len(c) == 0 {
			fmt.Println("The catalog is empty.")
			return nil
		}
		s := pipeline.Summarize(c)

		providers := make([]string, 0, len(s.PerProvider))
		for p := range s.PerProvider {
			providers = append(providers, p)
		}
		sort.Strings(providers)

		rows := [][]string{}
		for _, p := range providers {
			rows = append(rows, []string{p, strconv.Itoa(s.PerProvider[p])})
		}
		fmt.Println(renderTable([]string{"PROVIDER", "ENTRIES"}, rows, []bool{false, true}))

		fmt.Println(renderTable([]string{"", "COUNT"}, [][]string{
			{"Entries", strconv.Itoa(s.Entries)},
			{"Id range", fmt.Sprintf("%d-%d", s.MinID, s.MaxID)},
			{"Missing poster", strconv.Itoa(s.NoPoster)},
			{"Missing banner", strconv.Itoa(s.NoBanner)},
			{"Missing rating", strconv.Itoa(s.NoRating)},
			{"Missing stats", strconv.Itoa(s.NoStats)},
			{"Not finished", strconv.Itoa(s.NotFinished)},
			{"Version", shortVersion(version)},
		}, []bool{false, true}))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}

func renderTable(headers []string, rows [][]string, alignRight []bool) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(alignRight) && alignRight[i] {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
