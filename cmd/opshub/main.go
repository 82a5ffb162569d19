package main

import (
	"os"

	"github.com/opshub-io/opshub/cmd/opshub/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
