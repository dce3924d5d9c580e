package cmd

import (
	"log"
	"sort"
	"time"

	"shortwatch-backend/cmd/shortwatch-cli/utils"
	"shortwatch-backend/lib/snapshot"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(latestCmd)
}

var latestCmd = &cobra.Command{
	Use:   "latest <dataset>",
	Short: "Prints the latest observation for every key in a dataset.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dataset := args[0]

		latest, err := store.LatestAll(cmd.Context(), dataset)
		if err != nil {
			log.Fatal(err)
		}

		records := make([]snapshot.Record, 0, len(latest))
		for _, record := range latest {
			records = append(records, record)
		}
		sort.Slice(records, func(i, j int) bool {
			return records[i].Key.Label() < records[j].Key.Label()
		})

		fields := valueFields(records)

		t := utils.NewTable()
		header := table.Row{"Key", "Observed at"}
		for _, f := range fields {
			header = append(header, f)
		}
		t.AppendHeader(header)

		for _, record := range records {
			row := table.Row{
				record.Key.Label(),
				record.ObservedAt.Format(time.DateTime),
			}
			for _, f := range fields {
				row = append(row, formatValue(record.Values[f]))
			}
			t.AppendRow(row)
		}

		t.Render()
	},
}
