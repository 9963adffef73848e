// Command gateiosctl is a small demo CLI exercising a real AuthSession
// against a configured gateway, the way a developer would by hand
// while integrating the library.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gateiosctl",
	Short: "Exercise a gate-ios auth session from the command line",
}
