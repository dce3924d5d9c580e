package cmd

import (
	"database/sql"
	"fmt"
	"os"

	"shortwatch-backend/lib/snapshotstore"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

var DatabaseFile string

var store snapshotstore.Store

var rootCmd = &cobra.Command{
	Use:   "shortwatch-cli",
	Short: "shortwatch-cli inspects and exports the observation history recorded by shortwatchd.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if DatabaseFile == "" {
			return fmt.Errorf("no database specified, use --db or SHORTWATCH_DB")
		}
		if _, err := os.Stat(DatabaseFile); err != nil {
			return fmt.Errorf("cannot open database: %w", err)
		}
		db, err := sql.Open("sqlite", DatabaseFile)
		if err != nil {
			return err
		}
		db.SetMaxOpenConns(1)
		store = snapshotstore.NewStore(db)
		return nil
	},
}

func Execute() {
	rootCmd.PersistentFlags().StringVar(&DatabaseFile, "db", DatabaseFile, "path to the observations sqlite database")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
