package main

import (
	"os"

	"cloakchat/cmd/cloakchat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
