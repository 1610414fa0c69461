package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/paddock-io/paddock/pkg/fleet"
	"github.com/paddock-io/paddock/pkg/launcher"
	"github.com/paddock-io/paddock/pkg/log"
	"github.com/paddock-io/paddock/pkg/metrics"
	"github.com/paddock-io/paddock/pkg/notify"
	"github.com/paddock-io/paddock/pkg/storage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the deployment controller",
	Long: `Run the Paddock control loop on this node.

Deployments are restored from the local checkpoint database, then the
manifest file (if given) is applied on top. The process drains all
replicas gracefully on SIGINT/SIGTERM.

Examples:
  # Run with a manifest
  paddock run -f deployments.yaml

  # Run and restore whatever was deployed before
  paddock run --data-dir /var/lib/paddock`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("file", "f", "", "Deployment manifest to apply on startup")
	runCmd.Flags().String("data-dir", "./paddock-data", "Data directory for checkpoints and replica state")
	runCmd.Flags().Duration("tick-interval", fleet.DefaultTickInterval, "Control loop interval")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Prometheus metrics listen address (empty to disable)")
	runCmd.Flags().Duration("drain-timeout", 60*time.Second, "How long to wait for replicas to drain on shutdown")
	runCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().Bool("log-json", false, "Emit JSON logs")
}

func runRun(cmd *cobra.Command, args []string) error {
	manifestPath, _ := cmd.Flags().GetString("file")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	tickInterval, _ := cmd.Flags().GetDuration("tick-interval")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	drainTimeout, _ := cmd.Flags().GetDuration("drain-timeout")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")

	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %v", err)
	}

	launch, err := launcher.NewProcessLauncher(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create launcher: %v", err)
	}

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %v", err)
	}
	defer store.Close()

	broker := notify.NewBroker()
	broker.Start()
	defer broker.Stop()

	mgr, err := fleet.NewManager(fleet.Config{
		Launcher:     launch,
		Store:        store,
		Broker:       broker,
		TickInterval: tickInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to create fleet manager: %v", err)
	}

	if manifestPath != "" {
		if err := applyManifest(mgr, manifestPath); err != nil {
			return err
		}
	}

	// Log status changes so an operator can follow rollouts.
	sub := broker.Subscribe()
	go func() {
		for update := range sub {
			dlog := log.WithDeployment(update.Deployment)
			dlog.Info().
				Str("kind", string(update.Kind)).
				Str("status", string(update.Info.Status)).
				Str("message", update.Info.Message).
				Msg("deployment status changed")
		}
	}()

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Errorf("metrics server error", err)
			}
		}()
		mlog := log.WithComponent("metrics")
		mlog.Info().Str("addr", metricsAddr).Msg("metrics server listening")
	}

	mgr.Start()
	fmt.Println("Paddock is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down, draining replicas...")
	mgr.Shutdown()

	deadline := time.Now().Add(drainTimeout)
	for !mgr.Drained() && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
	if !mgr.Drained() {
		fmt.Println("! Drain timed out, force-stopping remaining replicas")
		mgr.Kill()
		forced := time.Now().Add(5 * time.Second)
		for !mgr.Drained() && time.Now().Before(forced) {
			time.Sleep(100 * time.Millisecond)
		}
	}
	mgr.Stop()

	if !mgr.Drained() {
		fmt.Println("! Some replicas did not confirm exit")
	} else {
		fmt.Println("✓ Shutdown complete")
	}
	return nil
}

func applyManifest(mgr *fleet.Manager, path string) error {
	manifest, err := fleet.LoadManifest(path)
	if err != nil {
		return err
	}
	for _, d := range manifest.Deployments {
		spec, err := d.Spec()
		if err != nil {
			return err
		}
		changed, err := mgr.Deploy(spec)
		if err != nil {
			return err
		}
		if changed {
			fmt.Printf("✓ Deployment applied: %s\n", spec.Name)
		} else {
			fmt.Printf("  Deployment unchanged: %s\n", spec.Name)
		}
	}
	return nil
}
