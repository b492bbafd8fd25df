package main

import (
	"os"

	"github.com/Lllllllleong/docenrich/cmd/docflow/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
