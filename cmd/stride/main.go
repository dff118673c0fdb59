// Command stride signs you in to stride from the terminal.
package main

import (
	"os"

	"github.com/Dicklesworthstone/stride/cmd/stride/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
