package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Force a token mint and print the resulting access token",
	Run: func(cmd *cobra.Command, args []string) {
		sess, err := buildSession()
		if err != nil {
			fatal(cmd, err)
			return
		}
		defer sess.Close()

		token, err := sess.CurrentToken(cmd.Context())
		if err != nil {
			fatal(cmd, err)
			return
		}
		fmt.Println(token)
	},
}

func init() {
	rootCmd.AddCommand(mintCmd)
}
