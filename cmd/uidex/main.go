// Package main provides the entry point for the uidex CLI.
package main

import (
	"os"

	"github.com/uidex/uidex/cmd/uidex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
