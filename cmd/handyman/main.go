package main

import (
	"os"

	"github.com/jerkytreats/handyman/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
