package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/log"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/metrics"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/orchestrator"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "timpani-orchestrator",
	Short: "Timpani orchestrator - global time-triggered task scheduler",
	Long: `The Timpani orchestrator accepts workloads from an upstream control
plane, places each task on a node and CPU, computes the workload
hyperperiod, serves per-node schedule tables to node agents, and relays
deadline-miss faults back upstream.`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalogPath, _ := cmd.Flags().GetString("catalog")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		algorithm, _ := cmd.Flags().GetString("algorithm")
		controlAddr, _ := cmd.Flags().GetString("control-addr")
		nodeAddr, _ := cmd.Flags().GetString("node-addr")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		metrics.SetVersion(Version)

		orch, err := orchestrator.New(orchestrator.Config{
			CatalogPath:      catalogPath,
			DataDir:          dataDir,
			Algorithm:        algorithm,
			ControlPlaneAddr: controlAddr,
			TransportAddr:    nodeAddr,
			MetricsAddr:      metricsAddr,
		})
		if err != nil {
			return fmt.Errorf("failed to create orchestrator: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return orch.Run(ctx)
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Timpani orchestrator version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	rootCmd.Flags().String("catalog", "", "Path to the YAML node catalog (empty uses the synthetic default node)")
	rootCmd.Flags().String("data-dir", "", "Directory for the fault-event ledger (empty disables persistence)")
	rootCmd.Flags().String("algorithm", "target-node-priority", "Placement algorithm (target-node-priority, best-fit-decreasing, least-loaded)")
	rootCmd.Flags().String("control-addr", ":8470", "Listen address for the upstream control plane")
	rootCmd.Flags().String("node-addr", ":8471", "Listen address for node agents")
	rootCmd.Flags().String("metrics-addr", ":9470", "Listen address for /metrics and health endpoints (empty disables)")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
