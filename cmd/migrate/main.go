package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/johndauphine/crosswalk/internal/config"
	"github.com/johndauphine/crosswalk/internal/logging"
	"github.com/johndauphine/crosswalk/internal/orchestrator"
	"github.com/johndauphine/crosswalk/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    version.Name,
		Usage:   "Migrate the legacy bird monitoring database into its relational schema",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "Path to configuration file",
			},
			&cli.StringFlag{
				Name:  "state-file",
				Usage: "Run ledger SQLite file (overrides migration.state_file)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: "text",
				Usage: "Log format: text or json",
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Usage: "Log level: debug, info, warn or error (overrides logging.level)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Stage, validate, resolve keys and load every table",
				Action: runMigration,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Proceed past referential warnings",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Record writes instead of performing them",
					},
					&cli.StringFlag{
						Name:  "run-id",
						Usage: "Run ID to record (default: random UUID)",
					},
					&cli.StringFlag{
						Name:  "state-file",
						Usage: "Run ledger SQLite file",
					},
					&cli.BoolFlag{
						Name:  "output-json",
						Usage: "Print the run summary as JSON",
					},
					&cli.StringFlag{
						Name:  "output-file",
						Usage: "Write the run summary as JSON to this file",
					},
				},
			},
			{
				Name:   "validate",
				Usage:  "Stage and validate without writing anything",
				Action: validateMigration,
			},
			{
				Name:   "plan",
				Usage:  "Print the dependency-ordered load plan",
				Action: showPlan,
			},
			{
				Name:  "duplicates",
				Usage: "Export composite-uniqueness violations as CSV for manual review",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Value:   "duplicates.csv",
						Usage:   "Output CSV file",
					},
				},
				Action: exportDuplicates,
			},
			{
				Name:  "health",
				Usage: "Check source and target connectivity",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "Check against the dry-run target"},
					&cli.BoolFlag{Name: "json", Usage: "Print the result as JSON"},
				},
				Action: healthCheck,
			},
			{
				Name:   "status",
				Usage:  "Show the most recent run",
				Action: showStatus,
			},
			{
				Name:  "history",
				Usage: "List all migration runs, or view details of a specific run",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "run",
						Usage: "Show details for a specific run ID",
					},
				},
				Action: showHistory,
			},
		},
	}
}

// getStateFile returns the ledger path, preferring the command flag over
// the global one.
func getStateFile(c *cli.Context) string {
	if c.IsSet("state-file") {
		return c.String("state-file")
	}
	for _, ctx := range c.Lineage() {
		if ctx != nil && ctx.IsSet("state-file") {
			return ctx.String("state-file")
		}
	}
	return ""
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(c, cfg)
	return cfg, nil
}

func setupLogging(c *cli.Context, cfg *config.Config) {
	level := cfg.Logging.Level
	if v := c.String("verbosity"); v != "" {
		level = v
	}
	if l, err := logging.ParseLevel(level); err == nil {
		logging.SetLevel(l)
	} else {
		logging.Warn("%v", err)
	}
	format := cfg.Logging.Format
	if c.IsSet("log-format") {
		format = c.String("log-format")
	}
	logging.SetFormat(format)
}

func newOrchestrator(c *cli.Context, opts orchestrator.Options) (*orchestrator.Orchestrator, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	opts.ConfigPath = c.String("config")
	opts.StateFile = getStateFile(c)
	orch, err := orchestrator.New(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	return orch, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM. The
// loader stops between tables; the table being written completes or rolls
// back on its own.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted. Finishing the current table...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runMigration(c *cli.Context) error {
	orch, err := newOrchestrator(c, orchestrator.Options{
		RunID:  c.String("run-id"),
		DryRun: c.Bool("dry-run"),
		Yes:    c.Bool("yes"),
		Quiet:  c.Bool("output-json"),
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	ctx, cancel := signalContext()
	defer cancel()

	result, runErr := orch.Run(ctx)
	if result != nil {
		if err := outputJSON(c, result); err != nil {
			return err
		}
	}
	return runErr
}

// outputJSON prints and/or writes the result when requested.
func outputJSON(c *cli.Context, result any) error {
	toStdout := c.Bool("output-json")
	file := c.String("output-file")
	if !toStdout && file == "" {
		return nil
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if toStdout {
		fmt.Fprintln(os.Stdout, string(data))
	}
	if file != "" {
		if err := os.WriteFile(file, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", file, err)
		}
	}
	return nil
}

func validateMigration(c *cli.Context) error {
	orch, err := newOrchestrator(c, orchestrator.Options{})
	if err != nil {
		return err
	}
	defer orch.Close()

	ctx, cancel := signalContext()
	defer cancel()
	_, err = orch.Validate(ctx)
	return err
}

func showPlan(c *cli.Context) error {
	orch, err := newOrchestrator(c, orchestrator.Options{})
	if err != nil {
		return err
	}
	defer orch.Close()
	return orch.PrintPlan()
}

func exportDuplicates(c *cli.Context) error {
	orch, err := newOrchestrator(c, orchestrator.Options{})
	if err != nil {
		return err
	}
	defer orch.Close()

	ctx, cancel := signalContext()
	defer cancel()
	_, err = orch.ExportDuplicates(ctx, c.String("out"))
	return err
}

func healthCheck(c *cli.Context) error {
	orch, err := newOrchestrator(c, orchestrator.Options{DryRun: c.Bool("dry-run")})
	if err != nil {
		return err
	}
	defer orch.Close()

	ctx, cancel := signalContext()
	defer cancel()
	result, err := orch.HealthCheck(ctx)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		orchestrator.PrintHealth(result)
	}
	if !result.Healthy {
		return fmt.Errorf("health check failed")
	}
	return nil
}

func showStatus(c *cli.Context) error {
	orch, err := newOrchestrator(c, orchestrator.Options{})
	if err != nil {
		return err
	}
	defer orch.Close()
	return orch.ShowStatus()
}

func showHistory(c *cli.Context) error {
	orch, err := newOrchestrator(c, orchestrator.Options{})
	if err != nil {
		return err
	}
	defer orch.Close()

	// If --run flag is provided, show details for that specific run
	if runID := c.String("run"); runID != "" {
		return orch.ShowRunDetails(runID)
	}
	return orch.ShowHistory()
}
