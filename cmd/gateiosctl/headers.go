package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagMethod string
	flagURL    string
	flagNonce  string
)

var headersCmd = &cobra.Command{
	Use:   "headers",
	Short: "Print the (bearer, dpop) header pair for a request",
	Run: func(cmd *cobra.Command, args []string) {
		sess, err := buildSession()
		if err != nil {
			fatal(cmd, err)
			return
		}
		defer sess.Close()

		hc, err := sess.Headers(cmd.Context(), flagMethod, flagURL, flagNonce)
		if err != nil {
			fatal(cmd, err)
			return
		}
		fmt.Printf("Authorization: Bearer %s\n", hc.Bearer)
		fmt.Printf("DPoP: %s\n", hc.DPoP)
	},
}

func init() {
	headersCmd.Flags().StringVar(&flagMethod, "method", "GET", "HTTP method the proof is bound to")
	headersCmd.Flags().StringVar(&flagURL, "url", "", "request URL the proof is bound to")
	headersCmd.Flags().StringVar(&flagNonce, "nonce", "", "DPoP nonce to embed, if any")
	rootCmd.AddCommand(headersCmd)
}
