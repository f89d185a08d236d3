package statestore

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"encoding/json"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"

	"github.com/vectorsql/vectorsql/pkg/log"
	"github.com/vectorsql/vectorsql/pkg/topicfeed"
	"github.com/vectorsql/vectorsql/pkg/vqtypes"
)

// Config holds configuration for creating a Registry, mirroring the
// teacher's manager.Config shape.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// Registry is a Raft-replicated backend registry: the producer side of the
// cluster membership feed described in spec §4.2 and §6.
type Registry struct {
	nodeID  string
	raft    *raft.Raft
	fsm     *FSM
	store   Store
	logger  zerolog.Logger

	mu          sync.RWMutex
	subscribers map[chan topicfeed.Delta]bool
}

// NewRegistry creates a Registry backed by a BoltDB store under
// cfg.DataDir. It does not start Raft; call Bootstrap to form a new
// single-node cluster. Registry has no method for joining an existing
// cluster.
func NewRegistry(cfg *Config) (*Registry, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create statestore data directory: %w", err)
	}

	store, err := NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		nodeID:      cfg.NodeID,
		store:       store,
		logger:      log.WithComponent("statestore"),
		subscribers: make(map[chan topicfeed.Delta]bool),
	}
	reg.fsm = NewFSM(store, reg.broadcast)

	return reg, nil
}

// Bootstrap starts a single-node Raft cluster over this registry's FSM,
// following the teacher's manager.Bootstrap tuning for edge/LAN deployments.
func (r *Registry) Bootstrap(bindAddr, dataDir string) error {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(r.nodeID)
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", bindAddr)
	if err != nil {
		return fmt.Errorf("failed to resolve bind address: %w", err)
	}

	transport, err := raft.NewTCPTransport(bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create raft transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(dataDir, 2, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-log.db"))
	if err != nil {
		return fmt.Errorf("failed to create raft log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-stable.db"))
	if err != nil {
		return fmt.Errorf("failed to create raft stable store: %w", err)
	}

	rft, err := raft.NewRaft(config, r.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return fmt.Errorf("failed to create raft instance: %w", err)
	}
	r.raft = rft

	configuration := raft.Configuration{
		Servers: []raft.Server{
			{ID: config.LocalID, Address: transport.LocalAddr()},
		},
	}
	return r.raft.BootstrapCluster(configuration).Error()
}

// IsLeader reports whether this node is the current Raft leader.
func (r *Registry) IsLeader() bool {
	return r.raft != nil && r.raft.State() == raft.Leader
}

// apply marshals and commits cmd through Raft, waiting for it to be applied.
func (r *Registry) apply(cmd Command) error {
	if r.raft == nil {
		return fmt.Errorf("statestore raft not initialized")
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal statestore command: %w", err)
	}
	future := r.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to apply statestore command: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}
	return nil
}

// RegisterBackend registers (or re-registers) a backend under id.
func (r *Registry) RegisterBackend(id string, descriptor *vqtypes.BackendDescriptor) error {
	data, err := json.Marshal(registerPayload{ID: id, Descriptor: descriptor})
	if err != nil {
		return err
	}
	return r.apply(Command{Op: opRegister, Data: data})
}

// DeregisterBackend removes a backend registration.
func (r *Registry) DeregisterBackend(id string) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return r.apply(Command{Op: opDeregister, Data: data})
}

// Snapshot returns a full-map Delta of every currently registered backend,
// for a new subscriber's initial resync.
func (r *Registry) Snapshot() (topicfeed.Delta, error) {
	backends, err := r.store.List()
	if err != nil {
		return topicfeed.Delta{}, err
	}
	entries := make([]topicfeed.Entry, 0, len(backends))
	for id, desc := range backends {
		entry, err := encodeEntry(id, desc)
		if err != nil {
			return topicfeed.Delta{}, err
		}
		entries = append(entries, entry)
	}
	return topicfeed.Delta{FullMap: true, Entries: entries}, nil
}

// Subscribe returns a channel that receives every Delta committed from this
// point on. The channel buffers up to 64 deltas; while it is full, further
// deltas for that subscriber are dropped with a warning, so a slow reader
// can miss deltas. Callers must call Unsubscribe to release it.
func (r *Registry) Subscribe() chan topicfeed.Delta {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan topicfeed.Delta, 64)
	r.subscribers[ch] = true
	return ch
}

// Unsubscribe stops delivery to ch and closes it.
func (r *Registry) Unsubscribe(ch chan topicfeed.Delta) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subscribers[ch]; ok {
		delete(r.subscribers, ch)
		close(ch)
	}
}

func (r *Registry) broadcast(d topicfeed.Delta) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for ch := range r.subscribers {
		select {
		case ch <- d:
		default:
			r.logger.Warn().Msg("subscriber channel full, dropping delta")
		}
	}
}

// Shutdown releases the registry's Raft and store resources.
func (r *Registry) Shutdown() error {
	if r.raft != nil {
		if err := r.raft.Shutdown().Error(); err != nil {
			return fmt.Errorf("failed to shut down raft: %w", err)
		}
	}
	return r.store.Close()
}
