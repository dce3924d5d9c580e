package cmd

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"time"

	"shortwatch-backend/lib/snapshot"

	"github.com/spf13/cobra"
)

var exportOut string

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write the CSV to this file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <dataset>",
	Short: "Exports the full observation history of a dataset as CSV.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dataset := args[0]

		keys, err := store.Keys(cmd.Context(), dataset)
		if err != nil {
			log.Fatal(err)
		}
		if len(keys) == 0 {
			log.Fatalf("dataset %q has no observations", dataset)
		}

		var all []snapshot.Record
		keyWidth := 0
		for _, key := range keys {
			if len(key) > keyWidth {
				keyWidth = len(key)
			}
			records, err := store.History(cmd.Context(), dataset, key, time.Time{}, time.Time{})
			if err != nil {
				log.Fatal(err)
			}
			all = append(all, records...)
		}

		fields := valueFields(all)

		out := os.Stdout
		if exportOut != "" {
			out, err = os.Create(exportOut)
			if err != nil {
				log.Fatal(err)
			}
			defer out.Close()
		}

		w := csv.NewWriter(out)

		header := make([]string, 0, keyWidth+1+len(fields))
		for i := 0; i < keyWidth; i++ {
			header = append(header, fmt.Sprintf("key_%d", i+1))
		}
		header = append(header, "observed_at")
		header = append(header, fields...)
		if err := w.Write(header); err != nil {
			log.Fatal(err)
		}

		for _, record := range all {
			row := make([]string, 0, len(header))
			for i := 0; i < keyWidth; i++ {
				if i < len(record.Key) {
					row = append(row, record.Key[i])
				} else {
					row = append(row, "")
				}
			}
			row = append(row, record.ObservedAt.Format(time.RFC3339))
			for _, f := range fields {
				row = append(row, formatValue(record.Values[f]))
			}
			if err := w.Write(row); err != nil {
				log.Fatal(err)
			}
		}

		w.Flush()
		if err := w.Error(); err != nil {
			log.Fatal(err)
		}
	},
}
