package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is the embedded build version, overridden at link time.
var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "gitspace",
	Short:   "Desktop Git client trust core",
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
