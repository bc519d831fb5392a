package main

import (
	"os"

	"github.com/greenlane/marketdesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
