// Package main provides the CLI for the LeapStep DATA step interpreter.
package main

import (
	"os"

	"github.com/leapstack-labs/leapstep/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
