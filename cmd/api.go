package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/albaranes/internal/api"
	"example.com/albaranes/internal/database"
)

var migrateOnStart bool

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server to handle delivery note, client and project requests`,
	RunE:  runAPI,
}

func init() {
	apiCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "run database migrations before serving")
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
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

	if migrateOnStart {
		if err := database.AutoMigrate(rt.db); err != nil {
			return err
		}
	}

	opts := api.Options{HealthChecks: rt.healthChecks()}
	if cfg.Storage.Provider == "local" {
		opts.UploadsDir = cfg.Storage.LocalDir
	}

	server, err := api.NewServer(cfg, api.Services{
		Auth:          rt.users,
		Users:         rt.users,
		Clients:       rt.clients,
		Projects:      rt.projects,
		DeliveryNotes: rt.notes,
	}, rt.metrics, rt.tracer, opts)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server error")
			return err
		}
	}

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}
