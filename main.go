package main

import (
	"fmt"
	"os"

	"github.com/galihrivanto/unipig/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "unipig",
	Short: "A command-line client for the Unipig layer 2 game",
}

func main() {
	rootCmd.AddCommand(cli.WalletCmd)
	rootCmd.AddCommand(cli.AirdropCmd)
	rootCmd.AddCommand(cli.FaucetCmd)
	rootCmd.AddCommand(cli.ServeCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
