package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/wikiclaim/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if !errors.Is(err, cli.ErrSilentExit) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
