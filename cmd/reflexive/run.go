package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/reflexive"
	"github.com/spf13/cobra"
)

// createRunCommand creates the run subcommand
func createRunCommand(globalFlags *GlobalFlags, runFlags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a demo workload with an embedded introspection agent",
		Long: `Run a counter workload that records state and logs into an embedded
reflexive instance. The instance mode follows the environment and config:
child of a monitor (REFLEXIVE_CLI_MODE/REFLEXIVE_CLI_PORT), parent that spawns
a monitor (--spawn), or standalone.

Examples:
  reflexive run --iterations=5
  reflexive run --spawn --port=3099 --debug
  reflexive run --api-listen=127.0.0.1:8091 --metrics-listen=:9091`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := reflexive.LoadConfig(globalFlags.ConfigPath)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			applyRunFlags(cmd, &cfg, runFlags)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWorkload(ctx, cmd, cfg, runFlags)
		},
	}
	cmd.Flags().BoolVar(&runFlags.Spawn, "spawn", false, "spawn a monitor process (parent mode)")
	cmd.Flags().BoolVar(&runFlags.Debug, "debug", false, "pass --debug to the spawned monitor")
	cmd.Flags().BoolVar(&runFlags.Shell, "shell", false, "pass --shell to the spawned monitor")
	cmd.Flags().BoolVar(&runFlags.Capture, "capture", false, "mirror process stdout/stderr into the log buffer")
	cmd.Flags().IntVar(&runFlags.Port, "port", 0, "port for the spawned monitor (default from config)")
	cmd.Flags().StringVar(&runFlags.APIListen, "api-listen", "", "serve the introspection API on this address")
	cmd.Flags().StringVar(&runFlags.MetricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&runFlags.Interval, "interval", time.Second, "delay between iterations")
	cmd.Flags().IntVar(&runFlags.Iterations, "iterations", 0, "stop after N iterations (0 runs until interrupted)")
	return cmd
}

// applyRunFlags overlays explicitly set flags on the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *reflexive.Config, f *RunFlags) {
	fl := cmd.Flags()
	if fl.Changed("spawn") {
		cfg.Spawn.Enabled = f.Spawn
	}
	if fl.Changed("debug") {
		cfg.Spawn.Debug = f.Debug
	}
	if fl.Changed("shell") {
		cfg.Spawn.Shell = f.Shell
	}
	if fl.Changed("capture") {
		cfg.Capture.Enabled = f.Capture
	}
	if fl.Changed("port") {
		cfg.Spawn.Port = f.Port
	}
	if fl.Changed("api-listen") {
		cfg.API.Listen = f.APIListen
	}
	// the command watches signals itself and closes the instance on the way out
	cfg.Spawn.HandleSignals = false
}

func runWorkload(ctx context.Context, cmd *cobra.Command, cfg reflexive.Config, f *RunFlags) error {
	inst, err := reflexive.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = inst.Close() }()
	log := inst.Logger()

	if cfg.API.Listen != "" {
		srv, err := reflexive.NewHTTPServer(cfg.API.Listen, cfg.API.BasePath, inst)
		if err != nil {
			return fmt.Errorf("start API server: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		log.Info("Introspection API listening", "addr", cfg.API.Listen, "base", cfg.API.BasePath)
	}
	if f.MetricsListen != "" {
		if err := reflexive.RegisterMetricsDefault(); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		go func() {
			if err := reflexive.ServeMetrics(f.MetricsListen); err != nil {
				log.Error("Metrics server stopped", "error", err)
			}
		}()
	}

	// resolved after New so that captured stdout is used in parent modes
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "reflexive demo (%s)\n", inst.Mode())
	return loop(ctx, out, inst, f)
}

func loop(ctx context.Context, out io.Writer, inst *reflexive.Instance, f *RunFlags) error {
	interval := f.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	counter := 0
	for {
		counter++
		inst.SetState("counter", counter)
		inst.SetState("iteration", counter)
		inst.SetState("timestamp", float64(time.Now().UnixNano())/1e9)
		inst.Log(reflexive.KindInfo, fmt.Sprintf("Processing iteration %d", counter))
		_, _ = fmt.Fprintf(out, "Iteration %d: counter = %d\n", counter, counter)

		if counter == 3 {
			answer := inst.Chat(ctx, "What is the current value of counter? Explain what the app is doing.")
			_, _ = fmt.Fprintf(out, "AI response:\n%s\n", answer)
		}
		if f.Iterations > 0 && counter >= f.Iterations {
			summary := inst.Chat(ctx, "Summarize what this app did. Be brief.")
			_, _ = fmt.Fprintf(out, "Done. Final counter: %d\nSummary:\n%s\n", counter, summary)
			return nil
		}

		select {
		case <-ctx.Done():
			inst.Log(reflexive.KindSystem, "Workload interrupted")
			return nil
		case <-ticker.C:
		}
	}
}
