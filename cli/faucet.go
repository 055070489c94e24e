package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/galihrivanto/unipig/api"
	"github.com/galihrivanto/unipig/faucet"
	"github.com/galihrivanto/unipig/poll"
	"github.com/galihrivanto/unipig/session"
	"github.com/spf13/cobra"
)

var (
	team      string
	noBrowser bool
)

var FaucetCmd = &cobra.Command{
	Use:   "faucet",
	Short: "Claim tokens by tweeting your support",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if team != "" {
			cfg.Team = team
		}
		t, err := faucet.ParseTeam(cfg.Team)
		if err != nil {
			log.Fatal(err)
		}

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

		var launcher faucet.Launcher = faucet.RodLauncher{Headless: cfg.Headless, Out: os.Stdout}
		if noBrowser {
			launcher = faucet.PrintLauncher{Out: os.Stdout}
		}

		f := faucet.New(client, signer,
			faucet.WithInterval(cfg.PollInterval),
			faucet.WithLauncher(launcher),
			faucet.WithSession(sess),
			faucet.WithLogger(log.Default()),
			faucet.WithPollOptions(poll.WithMaxTicks(cfg.FaucetTicks())),
			faucet.WithPhaseHook(func(p faucet.Phase, _ *api.FaucetStatus) {
				switch p {
				case faucet.Waiting:
					fmt.Println("Waiting for your tweet...")
				case faucet.Error:
					fmt.Println("Could not read the faucet status")
				}
			}),
		)

		status, err := f.Run(ctx, t)
		if err != nil {
			log.Fatal(err)
		}

		if handle := status.Handle(); handle != "" {
			fmt.Printf("Tokens claimed by @%s\n", handle)
		} else {
			fmt.Println("Tokens claimed")
		}
		if sess.HasSource(session.SourceTwitter) {
			for _, fn := range sess.Mutators() {
				fn(ctx)
			}
		}
		printPulses(sess.TakePulses())
	},
}

func init() {
	addClientFlags(FaucetCmd)
	FaucetCmd.Flags().StringVar(&team, "team", "", "UNI or PIGI (overrides UNIPIG_TEAM)")
	FaucetCmd.Flags().BoolVar(&noBrowser, "no-browser", false, "print the tweet link instead of opening a browser")
}
