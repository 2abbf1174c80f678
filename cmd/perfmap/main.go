package main

import (
	"os"

	"github.com/perfmap/perfmap/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
