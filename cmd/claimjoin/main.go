// Package main provides the claimjoin command.
package main

import (
	"os"

	"github.com/leapstack-labs/claimjoin/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
