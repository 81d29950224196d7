package cli

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/exchange"
)

// newServeCommand keeps the exchange process resident for a scripted or
// interactive session, supervised the same way the teacher's TCP server
// supervises its connection workers: a tomb.Tomb governs the background
// loop's lifetime and the process shuts down gracefully on SIGINT/SIGTERM
// (propagated through cmd.Context(), set up in cmd/exchange/main.go via
// signal.NotifyContext).
//
// The background loop's job is a defensive re-sync: every tick it
// re-persists the book state (the ledger and accounts files are not
// rewritten by this loop). Every
// mutating core operation already persists synchronously before returning
// (§5), so this is belt-and-suspenders rather than load-bearing.
func newServeCommand(ex *exchange.Exchange) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep the exchange resident, periodically re-syncing persisted state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervised(cmd.Context(), ex, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "resync-interval", 30*time.Second, "how often to re-persist state defensively")
	return cmd
}

func runSupervised(ctx context.Context, ex *exchange.Exchange, interval time.Duration) error {
	t, ctx := tomb.WithContext(ctx)

	t.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-t.Dying():
				return nil
			case <-ticker.C:
				if err := ex.Books.Persist(); err != nil {
					log.Error().Err(err).Msg("resync: failed to persist book state")
					continue
				}
				log.Debug().Msg("resync: persisted book state")
			}
		}
	})

	<-ctx.Done()
	t.Kill(nil)
	log.Info().Msg("exchange shutting down")
	return t.Wait()
}
