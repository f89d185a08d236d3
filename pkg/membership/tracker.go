// Package membership implements the cluster MembershipTracker (spec §4.2,
// C2): it consumes the raw topic feed produced by pkg/statestore, decodes
// and validates each entry, and publishes an immutable *vqtypes.BackendConfig
// snapshot that every other scheduler component reads without locking.
package membership

import (
	"encoding/json"
	"sort"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vectorsql/vectorsql/pkg/log"
	"github.com/vectorsql/vectorsql/pkg/metrics"
	"github.com/vectorsql/vectorsql/pkg/schederrors"
	"github.com/vectorsql/vectorsql/pkg/topicfeed"
	"github.com/vectorsql/vectorsql/pkg/vqtypes"
)

// record is the tracker's private bookkeeping for one live registration: the
// decoded descriptor plus the monotonically increasing sequence number it
// was last updated at, used to resolve duplicate-IP conflicts.
type record struct {
	key  string
	desc *vqtypes.BackendDescriptor
	seq  uint64
}

// Tracker consumes a membership topic feed and maintains a continuously
// updated, lock-free-readable snapshot of cluster membership.
//
// The zero value is not usable; construct with NewTracker.
type Tracker struct {
	logger zerolog.Logger

	// snapshot is published with atomic.Pointer so Snapshot() never blocks
	// on the apply goroutine, matching the teacher's copy-then-publish
	// broker idiom adapted from events.Broker.
	snapshot atomic.Pointer[vqtypes.BackendConfig]

	// byKey holds every live (non-tombstoned) registration, keyed by its
	// topic key. It is only ever touched from the single goroutine that
	// calls Apply, so it needs no lock of its own.
	byKey map[string]*record
	seq   uint64
}

// NewTracker creates a Tracker with an empty initial snapshot.
func NewTracker() *Tracker {
	t := &Tracker{
		logger: log.WithComponent("membership"),
		byKey:  make(map[string]*record),
	}
	t.snapshot.Store(vqtypes.NewBackendConfig(nil, nil))
	return t
}

// Snapshot returns the most recently published BackendConfig. The returned
// value is immutable and safe to share across goroutines without copying.
func (t *Tracker) Snapshot() *vqtypes.BackendConfig {
	return t.snapshot.Load()
}

// Apply consumes one delta from the topic feed, following spec §4.2's
// five-step update:
//  1. a full-map delta replaces the tracker's entire known set;
//  2. each entry is decoded from its raw payload, skipping and logging on
//     failure;
//  3. a decoded upsert replaces any prior registration under the same key;
//  4. duplicate registrations of the same backend address are resolved
//     last-writer-wins by sequence number (spec §4.2: "same IP, two IDs" —
//     i.e. the same backend process re-registering under a new topic key,
//     such as after a restart; a single host legitimately carries several
//     distinct backends on different ports, per §3's BackendConfig model,
//     and those are never collapsed);
//  5. the hostname→IP index is rebuilt in a fixed (sorted) order so the
//     published snapshot is deterministic for identical input deltas.
func (t *Tracker) Apply(d topicfeed.Delta) {
	if d.FullMap {
		t.byKey = make(map[string]*record)
	}

	for _, entry := range d.Entries {
		t.seq++
		if entry.Tombstone {
			delete(t.byKey, entry.Key)
			continue
		}

		desc, err := decodeDescriptor(entry.Payload)
		if err != nil {
			t.logger.Warn().
				Err(schederrors.ErrMembershipDecodeFailed).
				Str("key", entry.Key).
				Msg("skipping malformed membership entry")
			metrics.MembershipDeltasTotal.WithLabelValues("decode_failed").Inc()
			continue
		}

		t.byKey[entry.Key] = &record{key: entry.Key, desc: desc, seq: t.seq}
		metrics.MembershipDeltasTotal.WithLabelValues("applied").Inc()
	}

	t.publish()
}

func decodeDescriptor(payload []byte) (*vqtypes.BackendDescriptor, error) {
	var desc vqtypes.BackendDescriptor
	if err := json.Unmarshal(payload, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

// backendAddr identifies one physical backend process: IP plus port. Two
// registrations sharing an IP but different ports are distinct backends
// (spec §3) and must both survive; only two registrations resolving to the
// exact same address are a genuine duplicate (spec §4.2).
type backendAddr struct {
	ip   string
	port int
}

// publish resolves duplicate backend registrations, rebuilds the hostname
// index, and swaps in a fresh immutable snapshot.
func (t *Tracker) publish() {
	winners := make(map[backendAddr]*record, len(t.byKey))

	keys := make([]string, 0, len(t.byKey))
	for k := range t.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		rec := t.byKey[k]
		addr := backendAddr{ip: rec.desc.IP, port: rec.desc.Address.Port}
		existing, ok := winners[addr]
		if !ok {
			winners[addr] = rec
			continue
		}
		if rec.seq >= existing.seq {
			log.WithBackend(t.logger, rec.desc.IP).Warn().
				Err(schederrors.ErrDuplicateBackendID).
				Int("port", addr.port).
				Str("losing_key", existing.key).
				Str("winning_key", rec.key).
				Msg("duplicate backend registration, most recent wins")
			metrics.MembershipDeltasTotal.WithLabelValues("duplicate_id").Inc()
			winners[addr] = rec
		} else {
			log.WithBackend(t.logger, existing.desc.IP).Warn().
				Err(schederrors.ErrDuplicateBackendID).
				Int("port", addr.port).
				Str("losing_key", rec.key).
				Str("winning_key", existing.key).
				Msg("duplicate backend registration, most recent wins")
			metrics.MembershipDeltasTotal.WithLabelValues("duplicate_id").Inc()
		}
	}

	addrs := make([]backendAddr, 0, len(winners))
	for addr := range winners {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].ip != addrs[j].ip {
			return addrs[i].ip < addrs[j].ip
		}
		return addrs[i].port < addrs[j].port
	})

	descriptors := make([]*vqtypes.BackendDescriptor, 0, len(winners))
	for _, addr := range addrs {
		descriptors = append(descriptors, winners[addr].desc)
	}

	ipByHostname := make(map[string]string)
	for _, addr := range addrs {
		desc := winners[addr].desc
		if desc.Hostname == "" {
			continue
		}
		if _, exists := ipByHostname[desc.Hostname]; !exists {
			ipByHostname[desc.Hostname] = desc.IP
		}
	}

	cfg := vqtypes.NewBackendConfig(descriptors, ipByHostname)
	t.snapshot.Store(cfg)
	metrics.ClusterMembershipBackendsTotal.Set(float64(cfg.Size()))
}
