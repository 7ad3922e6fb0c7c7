package main

import (
	"os"

	"github.com/bdougie/framesearch/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
