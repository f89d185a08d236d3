package statestore

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/vectorsql/vectorsql/pkg/topicfeed"
	"github.com/vectorsql/vectorsql/pkg/vqtypes"
)

// Command is one state-change operation in the Raft log, adapted from the
// teacher's manager.Command — a tagged, JSON-payload envelope.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opRegister   = "register_backend"
	opDeregister = "deregister_backend"
)

type registerPayload struct {
	ID         string                     `json:"id"`
	Descriptor *vqtypes.BackendDescriptor `json:"descriptor"`
}

// FSM implements the Raft finite state machine for the backend registry. On
// every committed Apply it updates the bucket store and, if a delta sink is
// attached, emits the resulting incremental Delta so every replica can feed
// its local subscribers without a separate fanout round-trip.
type FSM struct {
	mu    sync.Mutex
	store Store
	// onDelta is invoked with the incremental delta produced by a
	// committed command. It may be nil (e.g. while restoring).
	onDelta func(topicfeed.Delta)
}

// NewFSM creates a registry FSM backed by store. onDelta is called after
// each successfully applied command with the delta it produced; pass nil to
// disable the callback (e.g. in tests that only care about store contents).
func NewFSM(store Store, onDelta func(topicfeed.Delta)) *FSM {
	return &FSM{store: store, onDelta: onDelta}
}

// encodeEntry serializes a backend descriptor into a topic entry payload.
// The FSM is the only writer of this encoding; pkg/membership is the only
// reader, and the two deliberately share nothing but this byte layout.
func encodeEntry(id string, d *vqtypes.BackendDescriptor) (topicfeed.Entry, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return topicfeed.Entry{}, fmt.Errorf("failed to marshal backend descriptor %q: %w", id, err)
	}
	return topicfeed.Entry{Key: id, Payload: payload}, nil
}

// Apply applies one committed Raft log entry.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("failed to unmarshal statestore command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opRegister:
		var p registerPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return fmt.Errorf("failed to unmarshal register payload: %w", err)
		}
		if err := f.store.Put(p.ID, p.Descriptor); err != nil {
			return err
		}
		entry, err := encodeEntry(p.ID, p.Descriptor)
		if err != nil {
			return err
		}
		f.publish(topicfeed.Delta{Entries: []topicfeed.Entry{entry}})
		return nil

	case opDeregister:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return fmt.Errorf("failed to unmarshal deregister payload: %w", err)
		}
		if err := f.store.Delete(id); err != nil {
			return err
		}
		f.publish(topicfeed.Delta{Entries: []topicfeed.Entry{{Key: id, Tombstone: true}}})
		return nil

	default:
		return fmt.Errorf("unknown statestore command: %s", cmd.Op)
	}
}

func (f *FSM) publish(d topicfeed.Delta) {
	if f.onDelta != nil {
		f.onDelta(d)
	}
}

// Snapshot captures the current registry contents as a point-in-time Raft
// snapshot.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	backends, err := f.store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list backends for snapshot: %w", err)
	}
	return &fsmSnapshot{Backends: backends}, nil
}

// Restore replaces the registry contents from a previously captured
// snapshot, then emits a full-map delta so any attached subscriber resyncs.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode statestore snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	existing, err := f.store.List()
	if err != nil {
		return fmt.Errorf("failed to list backends before restore: %w", err)
	}
	for id := range existing {
		if _, keep := snap.Backends[id]; !keep {
			if err := f.store.Delete(id); err != nil {
				return fmt.Errorf("failed to drop backend %q during restore: %w", id, err)
			}
		}
	}

	for id, desc := range snap.Backends {
		if err := f.store.Put(id, desc); err != nil {
			return fmt.Errorf("failed to restore backend %q: %w", id, err)
		}
	}

	entries := make([]topicfeed.Entry, 0, len(snap.Backends))
	for id, desc := range snap.Backends {
		entry, err := encodeEntry(id, desc)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}
	f.publish(topicfeed.Delta{FullMap: true, Entries: entries})

	return nil
}

type fsmSnapshot struct {
	Backends map[string]*vqtypes.BackendDescriptor `json:"backends"`
}

// Persist writes the snapshot to sink, as required by raft.FSMSnapshot.
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release releases snapshot resources; nothing to do here.
func (s *fsmSnapshot) Release() {}
