// Command spacedrep is a spaced repetition flashcard server. It speaks MCP
// over stdio for AI assistants and JSON over HTTP for everything else.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
