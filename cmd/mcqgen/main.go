package main

import (
	"os"

	"mcqgen/cmd/mcqgen/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
