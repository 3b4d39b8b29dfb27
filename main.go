package main

import (
	"os"

	"github.com/conneroisu/srcanalyze/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
