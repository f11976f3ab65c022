package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"supportdesk-backend/pkg/chroma"
	"supportdesk-backend/pkg/config"
	"supportdesk-backend/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "supportdesk",
		Short: "Support inbox triage, drafting and reply service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), "")
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(kbSeedCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the fetch scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Port to listen on (default from PORT)")
	return cmd
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch new mail and process pending support emails once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			a, err := buildApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.scheduler.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if result.FetchError != "" {
				log.Warn("fetch failed", zap.String("error", result.FetchError))
			}
			if result.Fetch != nil {
				fmt.Printf("fetched %d, stored %d, duplicates %d, ignored %d\n",
					result.Fetch.Fetched, result.Fetch.Stored, result.Fetch.Duplicates, result.Fetch.Ignored)
			}
			fmt.Printf("processed %d pending emails\n", len(result.Processed))
			return nil
		},
	}
}

func kbSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "kb-seed",
		Short: "Load knowledge-base snippets into Chroma",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			if file == "" {
				file = cfg.KBSeedFile
			}
			snippets := chroma.DefaultSnippets()
			if file != "" {
				if snippets, err = chroma.LoadSeed(file); err != nil {
					return err
				}
			}

			kb, err := chroma.NewKnowledgeBase(cfg, logger.Named(log, "kb"))
			if err != nil {
				return err
			}
			defer kb.Close()

			if err := kb.Upsert(cmd.Context(), snippets...); err != nil {
				return err
			}
			fmt.Printf("seeded %d snippets\n", len(snippets))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML seed file (default from KB_SEED_FILE, else built-in snippets)")
	return cmd
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg := config.Load()
	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

func runServe(ctx context.Context, port string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.startPushTrigger(ctx); err != nil {
		log.Warn("pubsub trigger disabled", zap.Error(err))
	}
	go a.warmUp(ctx)
	a.scheduler.Start()

	if port == "" {
		port = cfg.Port
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.handler.Start(":" + port)
	}()

	select {
	case err := <-errCh:
		a.scheduler.Stop()
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	a.scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.handler.Shutdown(shutdownCtx)
}
