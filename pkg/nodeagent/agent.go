package nodeagent

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/log"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/metrics"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/observer"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/orcherr"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/procscan"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/transport"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/wire"
	"github.com/rs/zerolog"
)

const (
	connectRetryInterval = time.Second
	connectMaxAttempts   = 300
	fetchPollInterval    = time.Second
	syncPollInterval     = 100 * time.Millisecond
	defaultSyncOffset    = 5 * time.Millisecond
	epollPollTimeout     = time.Second
	statsEveryCycles     = 100
)

// Config configures an Agent.
type Config struct {
	NodeID        string
	SyncEnabled   bool
	StatsInterval uint64 // completed cycles between statistics summaries; 0 uses statsEveryCycles

	// TraceWriter, when non-nil, receives one gnuplot-format line per
	// timer fire (task name, fire timestamp, wakeup jitter).
	TraceWriter io.Writer
}

// Agent is the per-node time-trigger executor: it fetches its schedule
// table, arms one periodic timer per task, and drives the signal fast
// path.
type Agent struct {
	cfg      Config
	client   *transport.Client
	resolver *procscan.Resolver
	obs      *observer.Observer
	platform Platform
	epoller  Epoller
	logger   zerolog.Logger

	mu      sync.Mutex
	state   State
	records map[string]*TimeTriggerRecord
	table   *types.ScheduleTable

	hp types.HyperperiodState

	traceMu     sync.Mutex
	traceHeader bool

	shutdown chan struct{}
	once     sync.Once
}

// NewAgent returns an Agent driven by client, following cfg.
func NewAgent(cfg Config, client *transport.Client) *Agent {
	return &Agent{
		cfg:      cfg,
		client:   client,
		resolver: procscan.New(),
		obs:      observer.New(),
		platform: newPlatform(),
		epoller:  newEpoller(),
		logger:   log.WithNodeID(cfg.NodeID),
		records:  make(map[string]*TimeTriggerRecord),
		shutdown: make(chan struct{}),
		state:    StateInit,
	}
}

// State reports the agent's current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
	a.logger.Info().Str("state", s.String()).Msg("node agent state transition")
}

// Shutdown requests a graceful stop; Run returns once the Stopping→Done
// transition completes.
func (a *Agent) Shutdown() {
	a.once.Do(func() { close(a.shutdown) })
}

// Run drives the full state machine: Init→Connected→Scheduled→Synced→
// Running→Stopping→Done. It returns nil only after a clean shutdown;
// any state-machine-fatal condition returns a non-nil error.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.connect(ctx); err != nil {
		return err
	}
	table, err := a.fetchSchedule(ctx)
	if err != nil {
		return err
	}
	a.table = table

	reference, err := a.syncBarrier(ctx)
	if err != nil {
		return err
	}

	a.obs.Calibrate(nil)
	a.obs.Start()
	defer a.obs.Stop()
	if err := a.obs.RequireAvailable(); err != nil {
		a.logger.Warn().Err(err).Msg("deadline observer unavailable, miss detection disabled")
	}

	a.hp = types.HyperperiodState{
		WorkloadID:    table.WorkloadID,
		HyperperiodUS: table.HyperperiodUS,
		StartedAt:     reference,
		TaskCount:     len(table.Tasks),
	}

	if err := a.epoller.Open(); err != nil {
		return err
	}
	defer a.epoller.Close()

	a.armTasks(table, reference)
	defer a.disarmAll()

	go a.hyperperiodLoop(ctx)

	a.setState(StateRunning)
	a.runLoop(ctx)

	a.setState(StateStopping)
	a.disarmAll()
	a.setState(StateDone)
	return nil
}

func (a *Agent) connect(ctx context.Context) error {
	for attempt := 0; attempt < connectMaxAttempts; attempt++ {
		if _, err := a.client.FetchSchedule(a.cfg.NodeID); err == nil {
			a.setState(StateConnected)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.shutdown:
			return orcherr.Wrap(orcherr.Config, "nodeagent.connect", errShutdownRequested)
		case <-time.After(connectRetryInterval):
		}
	}
	return orcherr.Wrap(orcherr.Config, "nodeagent.connect", errConnectExhausted)
}

func (a *Agent) fetchSchedule(ctx context.Context) (*types.ScheduleTable, error) {
	for {
		payload, err := a.client.FetchSchedule(a.cfg.NodeID)
		if err == nil && len(payload) > 0 {
			table, decodeErr := wire.Decode(payload)
			if decodeErr != nil {
				return nil, decodeErr
			}
			a.setState(StateScheduled)
			return table, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-a.shutdown:
			return nil, orcherr.Wrap(orcherr.Config, "nodeagent.fetchSchedule", errShutdownRequested)
		case <-time.After(fetchPollInterval):
		}
	}
}

func (a *Agent) syncBarrier(ctx context.Context) (time.Time, error) {
	if !a.cfg.SyncEnabled {
		ref := time.Now().Add(defaultSyncOffset)
		a.setState(StateSynced)
		return ref, nil
	}

	for {
		result, err := a.client.Sync(a.cfg.NodeID)
		if err == nil && result.Ack == 1 {
			a.setState(StateSynced)
			return result.Timestamp, nil
		}
		select {
		case <-ctx.Done():
			return time.Time{}, ctx.Err()
		case <-a.shutdown:
			return time.Time{}, orcherr.Wrap(orcherr.Config, "nodeagent.syncBarrier", errShutdownRequested)
		case <-time.After(syncPollInterval):
		}
	}
}

var (
	errConnectExhausted  = connectExhaustedError{}
	errShutdownRequested = shutdownRequestedError{}
)

type connectExhaustedError struct{}

func (connectExhaustedError) Error() string { return "exhausted connect retries" }

type shutdownRequestedError struct{}

func (shutdownRequestedError) Error() string { return "shutdown requested" }

func (a *Agent) countMiss(nodeID, taskName string, kind types.FaultKind) {
	metrics.DeadlineMissesTotal.WithLabelValues(nodeID, taskName, string(kind)).Inc()
}
