package cmd

import (
	"log"
	"time"

	"shortwatch-backend/cmd/shortwatch-cli/utils"
	"shortwatch-backend/lib/snapshot"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historySince string
	historyUntil string
)

func init() {
	historyCmd.Flags().StringVar(&historySince, "since", "", "only show observations on or after this date (2006-01-02)")
	historyCmd.Flags().StringVar(&historyUntil, "until", "", "only show observations on or before this date (2006-01-02)")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history <dataset> <key part> [key part...]",
	Short: "Prints every recorded observation for one key, oldest first.",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		dataset := args[0]
		key := snapshot.Key(args[1:])

		since, until, err := parseRange(historySince, historyUntil)
		if err != nil {
			log.Fatal(err)
		}

		records, err := store.History(cmd.Context(), dataset, key, since, until)
		if err != nil {
			log.Fatal(err)
		}
		if len(records) == 0 {
			log.Fatalf("no observations for key %q in dataset %q", key.Label(), dataset)
		}

		fields := valueFields(records)

		t := utils.NewTable()
		header := table.Row{"Observed at"}
		for _, f := range fields {
			header = append(header, f)
		}
		t.AppendHeader(header)

		for _, record := range records {
			row := table.Row{record.ObservedAt.Format(time.DateTime)}
			for _, f := range fields {
				row = append(row, formatValue(record.Values[f]))
			}
			t.AppendRow(row)
		}

		t.Render()
	},
}

func parseRange(sinceArg, untilArg string) (since, until time.Time, err error) {
	if sinceArg != "" {
		since, err = time.Parse(time.DateOnly, sinceArg)
		if err != nil {
			return
		}
	}
	if untilArg != "" {
		until, err = time.Parse(time.DateOnly, untilArg)
		if err != nil {
			return
		}
	}
	return
}
