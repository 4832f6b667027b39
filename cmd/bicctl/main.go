package main

import (
	"os"

	"bicdash/cmd/bicctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
