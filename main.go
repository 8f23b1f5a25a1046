package main

import (
	"os"

	"github.com/prokopidis/presidio/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
