package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/log"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/nodeagent"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/transport"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	flagCPU      int
	flagPriority int
	flagPort     int
	flagNodeID   string
	flagLogLevel int
	flagSync     bool
	flagTrace    bool
	flagApex     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "timpani-nodeagent [orchestrator-host]",
	Short: "Timpani node agent - per-node time-trigger executor",
	Long: `The Timpani node agent fetches its schedule table from the
orchestrator, resolves each task's worker thread by name, applies
scheduling policy and CPU affinity, arms one periodic timer per task,
and delivers wake-up signals at every release, reporting deadline
misses back to the orchestrator.`,
	Version: Version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runAgent,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Timpani node agent version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.Flags().IntVarP(&flagCPU, "cpu", "c", -1, "Bind the agent itself to this CPU")
	rootCmd.Flags().IntVarP(&flagPriority, "priority", "P", -1, "Real-time FIFO priority for the agent itself (1-99)")
	rootCmd.Flags().IntVarP(&flagPort, "port", "p", 8471, "Orchestrator node-transport port")
	rootCmd.Flags().StringVarP(&flagNodeID, "node-id", "n", "", "This node's id in the catalog (required)")
	rootCmd.Flags().IntVarP(&flagLogLevel, "log-level", "l", 2, "Log level 0-5 (0=error, 1=warn, 2=info, 3-5=debug)")
	rootCmd.Flags().BoolVarP(&flagSync, "sync", "s", false, "Enable the multi-node start-time barrier")
	rootCmd.Flags().BoolVarP(&flagTrace, "trace", "g", false, "Dump a gnuplot-format timer trace to stdout")
	rootCmd.Flags().BoolVarP(&flagApex, "apex", "a", false, "Apex compatibility mode")
}

func runAgent(cmd *cobra.Command, args []string) error {
	log.Init(log.Config{Level: levelFromNumeric(flagLogLevel)})
	logger := log.WithComponent("nodeagent")

	if flagNodeID == "" {
		return fmt.Errorf("node id is required (-n)")
	}
	if flagPort < 1 || flagPort > 65535 {
		return fmt.Errorf("port %d outside [1,65535]", flagPort)
	}
	if flagPriority < -1 || flagPriority > 99 {
		return fmt.Errorf("priority %d outside [-1,99]", flagPriority)
	}

	host := "localhost"
	if len(args) == 1 {
		host = args[0]
	}

	if err := nodeagent.ApplySelfAttributes(flagCPU, flagPriority); err != nil {
		logger.Warn().Err(err).Msg("failed to apply agent CPU/priority attributes, continuing unpinned")
	}
	if flagApex {
		logger.Info().Msg("apex compatibility mode enabled")
	}

	cfg := nodeagent.Config{
		NodeID:      flagNodeID,
		SyncEnabled: flagSync,
	}
	if flagTrace {
		cfg.TraceWriter = os.Stdout
	}

	client := transport.NewClient(fmt.Sprintf("http://%s:%d", host, flagPort))
	agent := nodeagent.NewAgent(cfg, client)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		agent.Shutdown()
	}()

	return agent.Run(ctx)
}

// levelFromNumeric maps the agent's numeric 0-5 log levels onto the
// shared logger's named levels.
func levelFromNumeric(n int) log.Level {
	switch {
	case n <= 0:
		return log.ErrorLevel
	case n == 1:
		return log.WarnLevel
	case n == 2:
		return log.InfoLevel
	default:
		return log.DebugLevel
	}
}
