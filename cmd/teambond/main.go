package main

import (
	"os"

	"teambond/cmd/teambond/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
