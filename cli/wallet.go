package cli

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/galihrivanto/unipig/wallet"
	"github.com/spf13/cobra"
)

var WalletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage the game wallet",
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new wallet and save its key",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if _, err := os.Stat(cfg.KeyFile); err == nil {
			log.Fatalf("%s already exists", cfg.KeyFile)
		}

		w, err := wallet.GenerateWallet()
		if err != nil {
			log.Fatal(err)
		}
		if err := w.Save(cfg.KeyFile); err != nil {
			log.Fatalf("Failed to save wallet: %v", err)
		}

		fmt.Println("Address:", w.Address)
		fmt.Println("Key saved to", cfg.KeyFile)
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Check the on-chain balance",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx, cancel := signalContext()
		defer cancel()

		addr := ""
		if len(args) == 1 {
			addr = args[0]
		} else {
			w, err := wallet.LoadWallet(cfg.KeyFile)
			if err != nil {
				log.Fatalf("Failed to load wallet: %v", err)
			}
			addr = w.From()
		}

		balance, err := wallet.Balance(ctx, cfg.RPCURL, addr)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Balance: %s\n", balance.Text('f', 6))
	},
}

var qrFile string

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Print the referral link other players scan",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		w, err := wallet.LoadWallet(cfg.KeyFile)
		if err != nil {
			log.Fatalf("Failed to load wallet: %v", err)
		}

		if qrFile == "-" {
			png, err := wallet.QRCode(w.From(), 256)
			if err != nil {
				log.Fatal(err)
			}
			os.Stdout.Write(png)
			return
		}

		fmt.Println(wallet.ReferralURL(w.From()))
		if qrFile != "" {
			if err := wallet.WriteQRCode(w.From(), qrFile, 256); err != nil {
				log.Fatal(err)
			}
			fmt.Println("QR code written to", qrFile)
		}
	},
}

var autoApprove bool

var connectCmd = &cobra.Command{
	Use:   "connect [wc-uri]",
	Short: "Sign requests arriving over a wallet bridge",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx, cancel := signalContext()
		defer cancel()

		w, err := wallet.LoadWallet(cfg.KeyFile)
		if err != nil {
			log.Fatalf("Failed to load wallet: %v", err)
		}

		in := bufio.NewReader(os.Stdin)
		approve := func(message string) bool {
			if autoApprove {
				return true
			}
			fmt.Printf("Sign %q? [y/N] ", message)
			answer, _ := in.ReadString('\n')
			return strings.EqualFold(strings.TrimSpace(answer), "y")
		}

		responder, err := wallet.ConnectResponder(ctx, args[0], w, approve)
		if err != nil {
			log.Fatalf("Failed to connect: %v", err)
		}
		defer responder.Close()

		fmt.Println("Connected as", w.From())
		if err := responder.Serve(ctx); err != nil && ctx.Err() == nil {
			log.Fatal(err)
		}
	},
}

func init() {
	for _, cmd := range []*cobra.Command{generateCmd, balanceCmd, shareCmd, connectCmd} {
		cmd.Flags().StringVar(&keyFile, "key", "", "wallet key file (overrides UNIPIG_KEY_FILE)")
	}
	shareCmd.Flags().StringVar(&qrFile, "qr", "", "also write a QR code PNG to this file, or only the PNG to stdout with -")
	connectCmd.Flags().BoolVar(&autoApprove, "yes", false, "approve every request")

	WalletCmd.AddCommand(generateCmd)
	WalletCmd.AddCommand(balanceCmd)
	WalletCmd.AddCommand(shareCmd)
	WalletCmd.AddCommand(connectCmd)
}
