package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the cached token without touching stored key material",
	Run: func(cmd *cobra.Command, args []string) {
		sess, err := buildSession()
		if err != nil {
			fatal(cmd, err)
			return
		}
		defer sess.Close()

		sess.Reset()
		fmt.Println("token cache cleared")
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
