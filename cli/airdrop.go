package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/galihrivanto/unipig/airdrop"
	"github.com/galihrivanto/unipig/flow"
	"github.com/spf13/cobra"
)

var retries int

var AirdropCmd = &cobra.Command{
	Use:   "airdrop [scanned address or referral link]",
	Short: "Airdrop tokens to you and another player",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx, cancel := signalContext()
		defer cancel()

		signer, closeSigner := openSigner(ctx, cfg)
		defer closeSigner()

		client := newClient(cfg)
		sess := newSession(cfg, signer, client)
		// baseline for balance pulses
		if err := sess.RefreshBalances(ctx); err != nil {
			log.Print(err)
		}

		a := airdrop.New(client, signer,
			flow.WithMinDuration(cfg.ConfirmFloor),
			flow.WithTimeout(cfg.RequestTimeout),
			flow.WithOnSuccess(sess.Mutators()...),
			flow.WithLogger(log.Default()),
		)

		var bar *progress
		unsubscribe := a.Subscribe(func(s airdrop.Snapshot) {
			if bar != nil && s.State != flow.AwaitingServer {
				bar.Stop()
				bar = nil
			}
			switch {
			case s.State == flow.AwaitingSignature:
				fmt.Println("Waiting for signature...")
			case s.State == flow.AwaitingServer:
				fmt.Println("Airdropping...")
				bar = startProgress(os.Stdout)
			case s.State.Terminal():
				fmt.Println(airdrop.Notice(s))
			}
		})
		defer unsubscribe()

		for attempt := 0; ; attempt++ {
			if err := a.Scan(ctx, args[0]); err != nil {
				log.Fatal(err)
			}

			snap, err := a.Wait(ctx)
			if err != nil {
				log.Fatal(err)
			}
			if snap.IsSuccess() {
				break
			}
			if attempt >= retries {
				log.Fatal(snap.Err)
			}

			// keep the notice up, then start over from idle
			if _, err := a.AutoReset(ctx, cfg.NoticeDuration); err != nil {
				log.Fatal(err)
			}
			fmt.Printf("Retrying (%d/%d)...\n", attempt+1, retries)
		}

		printPulses(sess.TakePulses())
		if data := sess.AddressData(); data != nil {
			fmt.Printf("Balances: %d UNI, %d PIGI (%d boosts left)\n", data.Balances["UNI"], data.Balances["PIGI"], data.BoostsLeft)
		}
	},
}

func init() {
	addClientFlags(AirdropCmd)
	AirdropCmd.Flags().IntVar(&retries, "retries", 0, "retry a failed airdrop this many times")
}
