package faultlog

import (
	"encoding/json"
	"path/filepath"
	"sort"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/log"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/orcherr"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
)

var bucketFaultEvents = []byte("fault_events")

// Store is a durable fault-event ledger, keyed by FaultEvent.ID.
// pkg/controlplane.FaultSink is satisfied by *Store; this persistence
// layer supplements the spec's FaultEvent tuple so operators can
// inspect miss history after the fact, rather than only ever seeing it
// relayed live through FaultEgress.
type Store struct {
	db     *bolt.DB
	logger zerolog.Logger
}

// New opens (or creates) the fault event database under dataDir.
func New(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "faultlog.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Memory, "faultlog.New", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketFaultEvents)
		return err
	})
	if err != nil {
		db.Close()
		return nil, orcherr.Wrap(orcherr.Memory, "faultlog.New", err)
	}

	return &Store{db: db, logger: log.WithComponent("faultlog")}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record persists event, keyed by its ID. Satisfies
// pkg/controlplane.FaultSink.
func (s *Store) Record(event *types.FaultEvent) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFaultEvents)
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return b.Put([]byte(event.ID), data)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("fault_id", event.ID).Msg("failed to persist fault event")
		return orcherr.Wrap(orcherr.Memory, "faultlog.Record", err)
	}
	return nil
}

// Get returns the fault event with the given id.
func (s *Store) Get(id string) (*types.FaultEvent, error) {
	var event types.FaultEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFaultEvents)
		data := b.Get([]byte(id))
		if data == nil {
			return orcherr.Wrap(orcherr.Config, "faultlog.Get", errFaultEventNotFound(id))
		}
		return json.Unmarshal(data, &event)
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListByWorkload returns every recorded fault event for workloadID,
// ordered oldest first.
func (s *Store) ListByWorkload(workloadID string) ([]*types.FaultEvent, error) {
	var out []*types.FaultEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFaultEvents)
		return b.ForEach(func(k, v []byte) error {
			var event types.FaultEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return err
			}
			if event.WorkloadID == workloadID {
				out = append(out, &event)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// CountByKind returns, for workloadID, how many recorded fault events
// carry each FaultKind.
func (s *Store) CountByKind(workloadID string) (map[types.FaultKind]int, error) {
	events, err := s.ListByWorkload(workloadID)
	if err != nil {
		return nil, err
	}
	counts := make(map[types.FaultKind]int)
	for _, e := range events {
		counts[e.Kind]++
	}
	return counts, nil
}

type faultEventNotFoundError string

func (e faultEventNotFoundError) Error() string {
	return "fault event not found: " + string(e)
}

func errFaultEventNotFound(id string) error {
	return faultEventNotFoundError(id)
}
