// Package main is the radiowake entry point.
package main

import (
	"fmt"
	"os"

	"github.com/radio-control/radiowake/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cmd.ExitCode(err))
	}
}
