package cmd

import (
	"log"
	"sort"

	"shortwatch-backend/cmd/shortwatch-cli/utils"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(keysCmd)
}

var keysCmd = &cobra.Command{
	Use:   "keys <dataset>",
	Short: "Prints every key that has ever been observed in a dataset.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dataset := args[0]

		keys, err := store.Keys(cmd.Context(), dataset)
		if err != nil {
			log.Fatal(err)
		}
		sort.Slice(keys, func(i, j int) bool {
			return keys[i].Label() < keys[j].Label()
		})

		t := utils.NewTable()
		t.AppendHeader(table.Row{"Key"})
		for _, key := range keys {
			t.AppendRow(table.Row{key.Label()})
		}
		t.Render()
	},
}
