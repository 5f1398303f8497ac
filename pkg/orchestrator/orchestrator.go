package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/catalog"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/controlplane"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/events"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/faultlog"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/log"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/metrics"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/orcherr"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/scheduler"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/transport"
	"github.com/rs/zerolog"
)

// Config configures an Orchestrator.
type Config struct {
	// CatalogPath is the YAML node-catalog source. Empty or unreadable
	// sources fall back to the catalog's synthetic default node.
	CatalogPath string
	// DataDir holds the fault-event ledger. Empty disables persistence;
	// faults are then only logged and published.
	DataDir string
	// Algorithm names the placement algorithm; empty selects
	// target-node-priority.
	Algorithm string

	// ControlPlaneAddr serves ScheduleIngest/FaultEgress (upstream-facing).
	ControlPlaneAddr string
	// TransportAddr serves FetchSchedule/Sync/ReportMiss (node-facing).
	TransportAddr string
	// MetricsAddr serves /metrics, /health, /ready, /live. Empty
	// disables the metrics listener.
	MetricsAddr string
}

// Orchestrator is the composition root of the orchestrator process: it
// owns the Node Catalog, the event broker, the fault ledger, the
// control-plane services, and the node-facing transport as plain values
// constructed once at startup and passed down explicitly. The logger and
// the metrics and health registries it reports to are package-level.
type Orchestrator struct {
	cfg    Config
	logger zerolog.Logger

	catalog *catalog.Catalog
	broker  *events.Broker
	faults  *faultlog.Store
	ingest  *controlplane.ScheduleIngest
	egress  *controlplane.FaultEgress
	node    *transport.Orchestrator

	cpServer   *controlplane.Server
	nodeServer *transport.Server
	metricsSrv *http.Server
}

// New builds the full orchestrator service graph from cfg. The catalog
// is loaded immediately; a load failure is non-fatal and leaves the
// synthetic default node in place, matching the catalog's own fallback
// contract.
func New(cfg Config) (*Orchestrator, error) {
	algo, err := scheduler.ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Config, "orchestrator.New", err)
	}

	o := &Orchestrator{
		cfg:     cfg,
		logger:  log.WithComponent("orchestrator"),
		catalog: catalog.New(),
		broker:  events.NewBroker(),
	}

	if cfg.CatalogPath != "" {
		if err := o.catalog.Load(cfg.CatalogPath); err != nil {
			o.logger.Warn().Err(err).Str("path", cfg.CatalogPath).Msg("catalog load failed, continuing with default node")
		} else {
			o.broker.Publish(&events.Event{
				Type:     events.EventCatalogLoaded,
				Metadata: map[string]string{"node_count": strconv.Itoa(o.catalog.Count())},
			})
		}
	}
	metrics.NodesTotal.Set(float64(o.catalog.Count()))

	if cfg.DataDir != "" {
		store, err := faultlog.New(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening fault ledger: %w", err)
		}
		o.faults = store
	}

	var sink controlplane.FaultSink
	if o.faults != nil {
		sink = o.faults
	}
	o.ingest = controlplane.NewScheduleIngest(o.catalog, algo, o.broker)
	o.egress = controlplane.NewFaultEgress(sink, o.broker)
	o.node = transport.NewOrchestrator(o.ingest, o.egress)
	o.node.SetBroker(o.broker)

	o.cpServer = controlplane.NewServer(o.ingest, o.egress)
	o.nodeServer = transport.NewServer(o.node)

	metrics.RegisterComponent("catalog", true, fmt.Sprintf("%d nodes", o.catalog.Count()))
	metrics.RegisterComponent("scheduler", true, algo.String())
	metrics.RegisterComponent("controlplane", true, "")
	return o, nil
}

// Ingest exposes the ScheduleIngest for in-process embedding (tests).
func (o *Orchestrator) Ingest() *controlplane.ScheduleIngest { return o.ingest }

// NodeTransport exposes the node-facing transport for in-process
// embedding.
func (o *Orchestrator) NodeTransport() *transport.Orchestrator { return o.node }

// Broker exposes the cluster event broker.
func (o *Orchestrator) Broker() *events.Broker { return o.broker }

// FaultLog returns the durable fault ledger, or nil when persistence is
// disabled.
func (o *Orchestrator) FaultLog() *faultlog.Store { return o.faults }

// Run starts the broker and the configured listeners, then blocks until
// ctx is cancelled, shutting everything down gracefully on the way out.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.broker.Start()
	defer o.broker.Stop()

	errCh := make(chan error, 3)

	go func() {
		if err := o.cpServer.Start(o.cfg.ControlPlaneAddr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("control plane listener: %w", err)
		}
	}()
	go func() {
		if err := o.nodeServer.Start(o.cfg.TransportAddr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("node transport listener: %w", err)
		}
	}()
	if o.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", metrics.HealthHandler())
		mux.HandleFunc("/ready", metrics.ReadyHandler())
		mux.HandleFunc("/live", metrics.LivenessHandler())
		o.metricsSrv = &http.Server{Addr: o.cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := o.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics listener: %w", err)
			}
		}()
	}

	o.logger.Info().
		Str("control_plane_addr", o.cfg.ControlPlaneAddr).
		Str("transport_addr", o.cfg.TransportAddr).
		Str("metrics_addr", o.cfg.MetricsAddr).
		Msg("orchestrator started")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		o.logger.Error().Err(runErr).Msg("listener failed, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.cpServer.Stop(shutdownCtx); err != nil {
		o.logger.Warn().Err(err).Msg("control plane shutdown")
	}
	if err := o.nodeServer.Stop(shutdownCtx); err != nil {
		o.logger.Warn().Err(err).Msg("node transport shutdown")
	}
	if o.metricsSrv != nil {
		if err := o.metricsSrv.Shutdown(shutdownCtx); err != nil {
			o.logger.Warn().Err(err).Msg("metrics shutdown")
		}
	}
	if o.faults != nil {
		if err := o.faults.Close(); err != nil {
			o.logger.Warn().Err(err).Msg("fault ledger close")
		}
	}
	o.logger.Info().Msg("orchestrator stopped")
	return runErr
}
