package main

import (
	"os"

	"github.com/chainsafe/fhevm-session/cmd/fhevm-inspect/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
