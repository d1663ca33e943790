// Package main provides the leapboard command-line interface.
package main

import (
	"os"

	"github.com/leapstack-labs/leapboard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
