package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/galihrivanto/unipig/devserver"
	"github.com/spf13/cobra"
)

var listen string

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local game server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if listen != "" {
			cfg.Listen = listen
		}
		ctx, cancel := signalContext()
		defer cancel()

		handlers := devserver.NewHandlers(devserver.NewLedger(), devserver.DefaultMaxAge, log.Default())
		server := &http.Server{
			Addr:    cfg.Listen,
			Handler: devserver.SetupRouter(handlers),
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()

		log.Printf("Listening on %s", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	},
}

func init() {
	ServeCmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides UNIPIG_LISTEN)")
}
