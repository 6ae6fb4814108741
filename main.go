// ABOUTME: Entry point for the recmeter level meter
// ABOUTME: Hands control to the cobra command tree
package main

import (
	"fmt"
	"os"

	"github.com/voicerec/recmeter/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
