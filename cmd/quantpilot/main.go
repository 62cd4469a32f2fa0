// Package main is the entry point for the quantpilot session engine.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantpilot/engine/internal/config"
	"github.com/quantpilot/engine/internal/domain"
	"github.com/quantpilot/engine/internal/eventlog"
	"github.com/quantpilot/engine/internal/session"
	"github.com/quantpilot/engine/internal/store"
	"github.com/quantpilot/engine/internal/summary"
)

var (
	version = "dev"
	commit  = "none"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:     "quantpilot",
		Short:   "Trading session orchestration engine",
		Long:    "Quantpilot runs a fixed pipeline of trading phases under heartbeat supervision,\nwith bounded retry and recovery, and records every observable event.",
		Version: fmt.Sprintf("%s (commit=%s)", version, commit),
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration YAML file")

	root.AddCommand(newRunCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newEventsCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves configuration: --config flag > QP_CONFIG env >
// quantpilot.yaml in the cwd > built-in defaults.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("QP_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat("quantpilot.yaml"); err == nil {
			path = "quantpilot.yaml"
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one orchestrated trading session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			sink, err := eventlog.NewFileSink(cfg.EventLogPath)
			if err != nil {
				return fmt.Errorf("open event log: %w", err)
			}
			defer sink.Close()

			db, err := store.NewDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer db.Close()

			mirror := store.NewSink(db)
			tee := eventlog.NewTee(sink, mirror)
			summaries := summary.NewFileStore(cfg.SummaryPath)

			orch := session.New(tee, summaries, mirror, session.Config{
				InitialCapital:      cfg.InitialCapital,
				HeartbeatInterval:   cfg.HeartbeatInterval.Std(),
				RecoveryMaxAttempts: cfg.Recovery.MaxAttempts,
				RecoveryBaseDelay:   cfg.Recovery.BaseDelay.Std(),
				RecoveryMaxDelay:    cfg.Recovery.MaxDelay.Std(),
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Printf("starting session (capital=%.2f, heartbeat=%s)", cfg.InitialCapital, cfg.HeartbeatInterval.Std())
			sum := orch.Run(ctx, demoPipeline(cfg, tee))

			fmt.Printf("session %s finished: status=%s phases=%d equity=%.2f roi=%.2f%%\n",
				sum.SessionID, sum.Status, sum.PhasesCompleted, sum.CurrentEquity, sum.ROI)
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest summary and recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			sum, err := summary.NewFileStore(cfg.SummaryPath).Read()
			if err != nil {
				fmt.Printf("no summary: %v\n", err)
			} else {
				fmt.Printf("session %s: status=%s phases=%d equity=%.2f roi=%.2f%% trades=%d (W%d/L%d)\n",
					sum.SessionID, sum.Status, sum.PhasesCompleted, sum.CurrentEquity, sum.ROI,
					sum.Totals.Trades, sum.Totals.Wins, sum.Totals.Losses)
			}

			db, err := store.NewDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer db.Close()

			var sessions store.SessionRepo
			records, err := sessions.ListRecent(cmd.Context(), db, limit)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tSTATUS\tSTARTED\tPHASES\tEQUITY\tTRADES")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%d\n",
					r.SessionID, r.Status,
					time.Unix(r.StartedAtUnix, 0).Format(time.RFC3339),
					r.PhasesCompleted, r.CurrentEquity, r.Trades)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum sessions to list")
	return cmd
}

func newEventsCommand() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print logged events in write order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			db, err := store.NewDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer db.Close()

			var repo store.EventRepo
			if sessionID != "" {
				evs, err := repo.ListBySession(cmd.Context(), db, sessionID)
				if err != nil {
					return err
				}
				printEvents(evs)
				return nil
			}
			evs, err := repo.ListAll(cmd.Context(), db)
			if err != nil {
				return err
			}
			printEvents(evs)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "only events for this session id")
	return cmd
}

func printEvents(events []domain.Event) {
	for _, e := range events {
		phase := e.Phase
		if phase == "" {
			phase = "-"
		}
		fmt.Printf("%s  %-8s %-19s %-14s %s\n",
			e.Timestamp.Format(time.RFC3339), e.Level, e.Type, phase, e.Message)
	}
}
