package main

import (
	"os"

	"github.com/solatis/qamatrix/cmd/qamatrix/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
