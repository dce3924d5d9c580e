package main

import (
	"os"

	"shortwatch-backend/cmd/shortwatch-cli/cmd"
)

func main() {
	if db, ok := os.LookupEnv("SHORTWATCH_DB"); ok {
		cmd.DatabaseFile = db
	}

	cmd.Execute()
}
