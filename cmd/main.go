package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"vision-qc/config"
	telegram "vision-qc/internal/api"
	"vision-qc/internal/api/rest"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:          "vision-qc",
		Short:        "Visual quality inspection with human review",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	load := func() (*config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		return cfg, nil
	}

	root.AddCommand(
		serveCommand(load),
		driftCommand(load),
		curateCommand(load),
		retrainCommand(load),
	)
	return root
}

func serveCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, if TELEGRAM_TOKEN is set, the Telegram bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			server := rest.NewServer(a.container, cfg.RawDir, a.registry, a.log)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.Start(cfg.HTTPAddr)
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})

			if cfg.TelegramToken != "" {
				bot, err := telegram.NewBot(cfg.TelegramToken, a.container, a.log)
				if err != nil {
					return fmt.Errorf("create bot: %w", err)
				}
				g.Go(func() error {
					return bot.Run(gctx)
				})
			} else {
				a.log.Info("TELEGRAM_TOKEN is empty, bot disabled")
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			a.log.Info("stopped")
			return nil
		},
	}
}

func driftCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "drift",
		Short: "Compare recent confidence with the baseline and record an alert on degradation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := bootstrap(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.container.DriftMonitor.Detect(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
}

func curateCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "curate",
		Short: "Rebuild the training corpus from reviewed inspections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := bootstrap(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.container.CorpusCurator.Curate(cmd.Context(), cfg.Labels)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}

func retrainCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "retrain",
		Short: "Curate the corpus and fine-tune the model on it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.container.RetrainTrigger.Retrain(ctx)
			if err := printJSON(cmd, result); err != nil {
				return err
			}
			if !result.Success {
				return errors.New(result.Message)
			}
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
