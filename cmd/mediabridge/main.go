// Package main is the entry point for the mediabridge application.
package main

import (
	"os"

	"github.com/jmylchreest/mediabridge/cmd/mediabridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
