package main

import (
	"os"

	"github.com/goblin-dev/goblin/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
