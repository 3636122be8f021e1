// Command planningsyncd mirrors a newsroom planning backend into a local
// synchronized store, keeping it current from websocket notifications.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"planningsync/internal/blob"
	"planningsync/internal/config"
	"planningsync/internal/core"
	"planningsync/internal/gateway"
	"planningsync/internal/infra/persistence/postgres"
	"planningsync/internal/infra/persistence/sqlite"
	"planningsync/internal/mirror"
	"planningsync/pkg/domain"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "planningsyncd",
		Short:         "Local mirror of a newsroom planning backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "planningsync.yaml", "path to the YAML configuration")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newExportCmd(&configPath))
	root.AddCommand(newAgendaCmd(&configPath))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "planningsyncd", version)
		},
	}
}

func openStore(cfg *config.Config, engine *core.RulesEngine) (core.Store, io.Closer, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		store, err := sqlite.NewStore(cfg.Storage.Path, engine)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, store, nil
	case "postgres":
		store, err := postgres.NewStore(cfg.Storage.DSN, engine)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, store, nil
	default:
		return core.NewMemoryStore(engine), nil, nil
	}
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Sync from the backend and serve notifications until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))

			store, closer, err := openStore(cfg, core.NewDefaultRulesEngine())
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}

			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector())
			recorder, err := core.NewPrometheusMetricsRecorder(registry, "planningsync")
			if err != nil {
				return fmt.Errorf("register metrics: %w", err)
			}
			service := core.NewService(store,
				core.WithSession(domain.Session{User: cfg.User, Session: cfg.SessionID}),
				core.WithMetricsRecorder(recorder),
				core.WithAuditRecorder(core.NewMemoryAuditRecorder(256)),
			)

			archive, err := blob.Open(cmd.Context(), cfg.Blob)
			if err != nil {
				return fmt.Errorf("open snapshot archive: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bold := color.New(color.Bold)
			bold.Fprintf(cmd.OutOrStdout(), "planningsyncd %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  backend   %s\n", cfg.ServerURL)
			fmt.Fprintf(cmd.OutOrStdout(), "  bus       %s\n", cfg.WebsocketURL)
			fmt.Fprintf(cmd.OutOrStdout(), "  storage   %s\n", cfg.Storage.Driver)
			fmt.Fprintf(cmd.OutOrStdout(), "  archive   %s\n", archive.Driver())
			fmt.Fprintf(cmd.OutOrStdout(), "  session   %s\n", cfg.SessionID)

			daemon := mirror.New(cfg, service, gateway.NewHTTPGateway(cfg.ServerURL, nil), logger,
				mirror.WithArchive(archive),
				mirror.WithMetricsRegistry(registry),
			)
			err = daemon.Run(ctx)
			if ctx.Err() != nil {
				color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "shutting down")
				return nil
			}
			return err
		},
	}
}

func newAgendaCmd(configPath *string) *cobra.Command {
	var fromFlag, untilFlag string
	var days int

	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "List upcoming event occurrences from the persisted cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			from := time.Now()
			if fromFlag != "" {
				if from, err = time.Parse("2006-01-02", fromFlag); err != nil {
					return fmt.Errorf("parse --from: %w", err)
				}
			}
			until := from.AddDate(0, 0, days)
			if untilFlag != "" {
				if until, err = time.Parse("2006-01-02", untilFlag); err != nil {
					return fmt.Errorf("parse --until: %w", err)
				}
			}

			store, closer, err := openStore(cfg, core.NewDefaultRulesEngine())
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}
			service := core.NewService(store,
				core.WithSession(domain.Session{User: cfg.User, Session: cfg.SessionID}),
			)

			occurrences, err := service.Agenda(from, until)
			if err != nil {
				return err
			}
			if len(occurrences) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no occurrences in window")
				return nil
			}

			bold := color.New(color.Bold)
			for _, occ := range occurrences {
				bold.Fprintf(cmd.OutOrStdout(), "%s", occ.Start.Format("2006-01-02 15:04"))
				fmt.Fprintf(cmd.OutOrStdout(), " - %s  %s", occ.End.Format("15:04"), occ.EventID)
				if occ.RecurrenceID != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  (series %s)", occ.RecurrenceID)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fromFlag, "from", "", "window start date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&untilFlag, "until", "", "window end date (YYYY-MM-DD, overrides --days)")
	cmd.Flags().IntVar(&days, "days", 7, "window length in days from the start date")
	return cmd
}

func newExportCmd(configPath *string) *cobra.Command {
	var sync bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Archive a snapshot of the mirrored state to the blob store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))

			store, closer, err := openStore(cfg, core.NewDefaultRulesEngine())
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}
			service := core.NewService(store,
				core.WithSession(domain.Session{User: cfg.User, Session: cfg.SessionID}),
			)

			archive, err := blob.Open(cmd.Context(), cfg.Blob)
			if err != nil {
				return fmt.Errorf("open snapshot archive: %w", err)
			}

			daemon := mirror.New(cfg, service, gateway.NewHTTPGateway(cfg.ServerURL, nil), logger,
				mirror.WithArchive(archive),
			)
			if sync {
				if err := daemon.FullSync(cmd.Context()); err != nil {
					return err
				}
			}
			info, err := daemon.ExportSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "archived %s (%d bytes)\n", info.Key, info.Size)
			return nil
		},
	}
	cmd.Flags().BoolVar(&sync, "sync", false, "fetch the backend state before archiving instead of exporting the persisted cache")
	return cmd
}
