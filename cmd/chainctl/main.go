// Package main provides chainctl, an offline tool for kidney paired donation graphs.
//
// Usage:
//
//	chainctl [flags] <command> [args]
//
// Commands:
//
//	summary  - Print the origin, description and altruists of a graph file
//	hash     - Print the content hash that identifies a graph on the server
//	build    - Build a transplant chain from an altruistic donor
//	donors   - List a recipient's related donors and their expected utility
//	export   - Write a graph with donors and recipients removed
package main

import (
	"fmt"
	"os"

	"github.com/kidney-chain-server/cmd/chainctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
