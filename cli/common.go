package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/galihrivanto/unipig/api"
	"github.com/galihrivanto/unipig/config"
	"github.com/galihrivanto/unipig/session"
	"github.com/galihrivanto/unipig/wallet"
	"github.com/spf13/cobra"
)

var (
	apiURL    string
	keyFile   string
	bridgeURI string
	address   string
)

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&apiURL, "api", "", "game server URL (overrides UNIPIG_API_URL)")
	cmd.Flags().StringVar(&keyFile, "key", "", "wallet key file (overrides UNIPIG_KEY_FILE)")
	cmd.Flags().StringVar(&bridgeURI, "bridge", "", "sign through a remote wallet at this wc: URI")
	cmd.Flags().StringVar(&address, "address", "", "address of the remote wallet, with --bridge")
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if keyFile != "" {
		cfg.KeyFile = keyFile
	}
	if bridgeURI != "" {
		cfg.BridgeURI = bridgeURI
	}
	return cfg
}

// signalContext is cancelled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openSigner returns the remote bridge signer when a bridge is configured,
// the local key file otherwise.
func openSigner(ctx context.Context, cfg *config.Config) (wallet.Signer, func()) {
	if cfg.BridgeURI != "" {
		if address == "" {
			log.Fatal("--address is required with --bridge")
		}
		signer, err := wallet.DialBridgeSigner(ctx, cfg.BridgeURI, address)
		if err != nil {
			log.Fatalf("Failed to connect bridge: %v", err)
		}
		return signer, func() { signer.Close() }
	}

	w, err := wallet.LoadWallet(cfg.KeyFile)
	if err != nil {
		log.Fatalf("Failed to load wallet: %v", err)
	}
	return w, func() {}
}

func newClient(cfg *config.Config) *api.Client {
	return api.NewClient(cfg.APIURL,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(log.Default()),
	)
}

func newSession(cfg *config.Config, signer wallet.Signer, client *api.Client) *session.Session {
	return session.New(signer, session.RPC{URL: cfg.RPCURL}, client, log.Default())
}
