// Package scanassign implements the ScanAssigner (spec §4.5, C5): for every
// scan range in a scan node, it chooses exactly one executor backend by
// memory distance and load, using an assign.Context built over the current
// membership snapshot.
package scanassign

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/vectorsql/vectorsql/pkg/assign"
	"github.com/vectorsql/vectorsql/pkg/log"
	"github.com/vectorsql/vectorsql/pkg/rng"
	"github.com/vectorsql/vectorsql/pkg/schederrors"
	"github.com/vectorsql/vectorsql/pkg/vqtypes"
)

// Assignment is the outcome of assigning one scan range to a backend.
type Assignment struct {
	Backend  *vqtypes.BackendDescriptor
	Range    vqtypes.ScanRange
	Distance vqtypes.MemoryDistance
}

// Result is the full output of assigning every scan range for one scan
// node: the per-backend IP assignment lists plus the byte counters the
// facade aggregates into the final QuerySchedule.
type Result struct {
	// ByIP groups this node's assignments by backend IP, in the order
	// they were recorded.
	ByIP map[string][]Assignment
	// Counters accumulates bytes per memory-distance class across every
	// range assigned by this call.
	Counters assign.ByteCounters
}

// Assigner assigns scan ranges to executor backends.
type Assigner struct {
	logger zerolog.Logger
}

// New creates an Assigner.
func New() *Assigner {
	return &Assigner{logger: log.WithComponent("scanassign")}
}

// AssignScanRanges implements spec §4.5: hostList is the plan-local host
// list scan range replicas index into; ranges carry those indices. src is
// the per-query seeded RNG; coordAddress identifies the coordinator for
// exec_at_coord short-circuiting.
func (a *Assigner) AssignScanRanges(
	snapshot *vqtypes.BackendConfig,
	hostList []vqtypes.NetworkAddress,
	ranges []vqtypes.ScanRange,
	hint *vqtypes.ScanRangeHint,
	opts vqtypes.QueryOptions,
	src *rng.Source,
	coordAddress vqtypes.NetworkAddress,
) (*Result, error) {
	if snapshot.Size() == 0 {
		return nil, schederrors.ErrNoExecutors
	}

	ctx := assign.NewContext(snapshot.Executors(), src)
	result := &Result{ByIP: make(map[string][]Assignment)}

	ordered, err := orderRanges(hostList, ranges, snapshot)
	if err != nil {
		return nil, err
	}

	for _, r := range ordered {
		if hint != nil && hint.ExecAtCoord {
			a.recordAtCoordinator(result, ctx, coordAddress, r.rng)
			continue
		}

		minDistance := opts.EffectiveMinDistance(hint)

		classified, err := classifyReplicas(r.rng, hostList, snapshot, minDistance)
		if err != nil {
			return nil, err
		}

		best := bestDistance(classified)
		candidates := candidatesAt(classified, best)

		var breakTiesByRank bool
		switch best {
		case vqtypes.CacheLocal, vqtypes.Remote:
			breakTiesByRank = true
		case vqtypes.DiskLocal:
			breakTiesByRank = opts.ScheduleRandomReplica
		}

		var ip string
		var ok bool
		if len(candidates) > 0 {
			ip, ok = ctx.SelectLocal(candidates, breakTiesByRank)
		}
		if !ok {
			ip, ok = ctx.SelectRemote()
			if !ok {
				return nil, schederrors.ErrNoExecutors
			}
			best = vqtypes.Remote
		}

		a.recordAt(result, ctx, ip, r.rng, best)
	}

	result.Counters = ctx.Counters()
	return result, nil
}

func (a *Assigner) recordAt(result *Result, ctx *assign.Context, ip string, r vqtypes.ScanRange, distance vqtypes.MemoryDistance) {
	backend := ctx.PickPortOn(ip)
	ctx.Record(ip, r.LengthBytes, distance)
	result.ByIP[ip] = append(result.ByIP[ip], Assignment{Backend: backend, Range: r, Distance: distance})
}

// recordAtCoordinator implements spec §4.5 step 1: exec_at_coord bypasses
// locality/load entirely and always lands on the coordinator, which is
// coordinator-only and therefore absent from the snapshot's executor pool
// ctx load-balances over. Its backend descriptor is materialized directly
// rather than looked up through ctx, so the assignment carries a real,
// non-nil BackendDescriptor for the fragment planner to place an instance
// on.
func (a *Assigner) recordAtCoordinator(result *Result, ctx *assign.Context, coordAddress vqtypes.NetworkAddress, r vqtypes.ScanRange) {
	backend := vqtypes.CoordinatorDescriptor(coordAddress)
	ctx.RecordCoordinatorAssignment(r.LengthBytes)
	result.ByIP[coordAddress.Host] = append(result.ByIP[coordAddress.Host], Assignment{Backend: backend, Range: r, Distance: vqtypes.Remote})
}

// rankedRange pairs a scan range with its original index and whether it has at least one local (executor-hosted) replica, used
// only to order ranges before assignment.
type rankedRange struct {
	rng      vqtypes.ScanRange
	index    int
	hasLocal bool
}

// orderRanges implements spec §4.5 "Ordering of scan ranges": ranges with
// any local replica are processed before purely remote ones, so remote
// assignment load-balances over what's left. Within each group, input
// order is preserved (sort.SliceStable).
func orderRanges(hostList []vqtypes.NetworkAddress, ranges []vqtypes.ScanRange, snapshot *vqtypes.BackendConfig) ([]rankedRange, error) {
	out := make([]rankedRange, len(ranges))
	for i, r := range ranges {
		hasLocal := false
		for _, loc := range r.Locations {
			if loc.HostIdx < 0 || loc.HostIdx >= len(hostList) {
				return nil, schederrors.ErrMalformedPlan
			}
			ip := hostList[loc.HostIdx].Host
			if snapshot.HasExecutor(ip) {
				hasLocal = true
			}
		}
		out[i] = rankedRange{rng: r, index: i, hasLocal: hasLocal}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].hasLocal && !out[j].hasLocal
	})
	return out, nil
}

// replicaClass is one replica's resolved memory distance plus the IP it
// would assign to, after clamping by the effective minimum distance.
type replicaClass struct {
	ip       string
	distance vqtypes.MemoryDistance
}

func classifyReplicas(r vqtypes.ScanRange, hostList []vqtypes.NetworkAddress, snapshot *vqtypes.BackendConfig, minDistance vqtypes.MemoryDistance) ([]replicaClass, error) {
	out := make([]replicaClass, 0, len(r.Locations))
	for _, loc := range r.Locations {
		if loc.HostIdx < 0 || loc.HostIdx >= len(hostList) {
			return nil, schederrors.ErrMalformedPlan
		}
		ip := hostList[loc.HostIdx].Host
		if !snapshot.HasExecutor(ip) {
			continue
		}
		distance := vqtypes.DiskLocal
		if loc.IsCached {
			distance = vqtypes.CacheLocal
		}
		if distance < minDistance {
			distance = minDistance
		}
		out = append(out, replicaClass{ip: ip, distance: distance})
	}
	return out, nil
}

func bestDistance(classified []replicaClass) vqtypes.MemoryDistance {
	best := vqtypes.Remote
	for _, c := range classified {
		if c.distance < best {
			best = c.distance
		}
	}
	return best
}

func candidatesAt(classified []replicaClass, distance vqtypes.MemoryDistance) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range classified {
		if c.distance == distance && !seen[c.ip] {
			seen[c.ip] = true
			out = append(out, c.ip)
		}
	}
	return out
}
