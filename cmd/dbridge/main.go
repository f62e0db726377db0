// Package main provides the dbridge command-line interface.
package main

import (
	"os"

	"github.com/dataforge-labs/dbridge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
