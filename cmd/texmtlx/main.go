// Package main provides the entry point for the texmtlx CLI.
package main

import (
	"fmt"
	"os"

	"github.com/raphaelgruber/texmtlx/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
