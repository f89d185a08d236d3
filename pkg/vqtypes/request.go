package vqtypes

// QueryOptions are the per-query tunables from spec §6, all optional.
type QueryOptions struct {
	// ReplicaPreference sets the baseline minimum memory distance.
	// Default: PreferCacheLocal.
	ReplicaPreference ReplicaPreference
	// ScheduleRandomReplica breaks DISK_LOCAL ties by random rank instead
	// of input order. Default: false.
	ScheduleRandomReplica bool
	// DisableCachedReads forces an effective minimum of DiskLocal
	// regardless of ReplicaPreference or any per-node hint. Default: false.
	DisableCachedReads bool
	// MtDop is the multi-threaded degree of parallelism: each host's scan
	// ranges for a fragment are split into up to MtDop instances. Default:
	// 1 (no splitting).
	MtDop int
	// RequestPool is opaque to the scheduler; carried through for the
	// caller's admission-control bookkeeping.
	RequestPool string
	// RandSeed seeds the per-scheduling-call RNG. Two calls with identical
	// inputs and RandSeed produce byte-identical output (spec §8 property 6).
	RandSeed int64
	// ScanHostsOnly restricts a UNION fragment's instance placement to only
	// the hosts of scan nodes within that fragment, instead of the default
	// union-of-scan-hosts-and-input-fragment-hosts rule. See SPEC_FULL.md
	// "Open Question decisions".
	ScanHostsOnly bool
}

// DefaultQueryOptions returns the spec-mandated defaults.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		ReplicaPreference: PreferCacheLocal,
		MtDop:             1,
	}
}

// EffectiveMinDistance computes the minimum memory distance to use for a
// given plan node, per spec §4.5:
//  1. If DisableCachedReads is set, any hint is ignored and the result is
//     DiskLocal, or the query-wide preference if that is stricter.
//  2. Otherwise the stricter (numerically larger) of the query-wide
//     preference and any per-node override.
func (o QueryOptions) EffectiveMinDistance(hint *ScanRangeHint) MemoryDistance {
	if o.DisableCachedReads {
		if DiskLocal > o.ReplicaPreference.AsDistance() {
			return DiskLocal
		}
		return o.ReplicaPreference.AsDistance()
	}
	min := o.ReplicaPreference.AsDistance()
	if hint != nil && hint.ReplicaPreferenceOverride != nil {
		override := hint.ReplicaPreferenceOverride.AsDistance()
		if override > min {
			min = override
		}
	}
	return min
}

// QueryExecRequest is the input to Scheduler.Schedule.
type QueryExecRequest struct {
	QueryID string
	Plans   []*PlanExecInfo
	Options QueryOptions
	// CoordAddress is the address of the coordinator issuing this query;
	// it always receives the unpartitioned root fragment instance.
	CoordAddress NetworkAddress
}

// PlanExecInfo groups one plan's fragments with the plan-local host list and
// scan-range locations its SCAN nodes reference.
type PlanExecInfo struct {
	Fragments []*Fragment
	// HostList is indexed by ReplicaLocation.HostIdx.
	HostList []NetworkAddress
	// PerNodeScanRanges maps a SCAN plan-node id to its scan ranges.
	PerNodeScanRanges map[int32][]ScanRange
	// PerNodeHints maps a SCAN plan-node id to its scheduling hint, if any.
	PerNodeHints map[int32]ScanRangeHint
}
