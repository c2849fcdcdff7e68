package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify every account's API token and exit",
	Run: func(cmd *cobra.Command, args []string) {
		app := setup()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := app.engine.VerifyAccounts(ctx); err != nil {
			app.log.Error().Err(err).Msg("credential verification failed")
			os.Exit(exitCredentials)
		}
		fmt.Println("all account tokens valid")
		os.Exit(exitOK)
	},
}
