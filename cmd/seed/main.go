package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Seed identities into the credential store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(userCmd())
	return cmd
}
