package main

import (
	"os"

	"github.com/Billy-Davies-2/mitzi/cmd/mitzi/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
