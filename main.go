package main

import (
	"os"

	"github.com/gemterm/gemterm/cmd"
)

func main() {
	if os.Getenv("TERM") == "" {
		os.Setenv("TERM", "xterm-256color")
	}
	cmd.Execute()
}
