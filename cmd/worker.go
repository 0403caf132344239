package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/albaranes/internal/messaging"
	"example.com/albaranes/internal/services"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that renders queued delivery notes and reconciles notes left without a PDF`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rt, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	consumer, err := messaging.NewConsumer(ctx, cfg)
	if err != nil {
		return err
	}
	if consumer != nil {
		defer consumer.Close()

		g.Go(func() error {
			log.Info().Str("provider", cfg.Queue.Provider).Msg("Starting render request consumer")
			return consumer.Consume(ctx, renderHandler(rt.notes))
		})
	} else {
		log.Info().Msg("No render queue configured, running reconciliation only")
	}

	// The reconciliation job renders notes whose request was lost or never queued
	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Worker.ReconcileInterval),
			gocron.NewTask(func() {
				rendered, err := rt.notes.ReconcileRenders(ctx, cfg.Worker.ReconcileMinAge, cfg.Worker.ReconcileBatch)
				if err != nil {
					log.Error().Err(err).Msg("Failed to reconcile delivery note renders")
					return
				}
				if rendered > 0 {
					log.Info().Int("rendered", rendered).Msg("Reconciled delivery note renders")
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}

		log.Info().Dur("interval", cfg.Worker.ReconcileInterval).Msg("Starting render reconciliation job")
		scheduler.Start()

		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

// renderHandler renders one queued note. Requests for notes that no longer need
// a render are acknowledged so they are not redelivered.
func renderHandler(notes *services.DeliveryNoteService) messaging.Handler {
	return func(ctx context.Context, req messaging.RenderRequest) error {
		_, err := notes.RenderAndStore(ctx, req.DeliveryNoteID)
		switch services.KindOf(err) {
		case services.KindNotFound, services.KindConflict:
			log.Warn().Err(err).Str("delivery_note_id", req.DeliveryNoteID.String()).Msg("Dropping render request")
			return nil
		}
		return err
	}
}
