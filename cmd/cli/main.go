package main

import (
	"os"

	"github.com/schoolhub-dev/schoolhub/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
