package vqtypes

// ReplicaLocation is one physical replica of a ScanRange, expressed as an
// index into the owning PlanExecInfo's HostList plus a cached flag.
type ReplicaLocation struct {
	HostIdx  int
	IsCached bool
}

// ScanRange is a contiguous chunk of a table's data to be read by exactly
// one executor. Blob is an opaque descriptor (e.g. a serialized file split)
// that the scheduler never interprets.
type ScanRange struct {
	Blob        []byte
	LengthBytes int64
	Locations   []ReplicaLocation
}

// MemoryDistance is the cost class of reading a replica, lowest cost first.
type MemoryDistance int

const (
	CacheLocal MemoryDistance = iota
	DiskLocal
	Remote
)

func (d MemoryDistance) String() string {
	switch d {
	case CacheLocal:
		return "CACHE_LOCAL"
	case DiskLocal:
		return "DISK_LOCAL"
	case Remote:
		return "REMOTE"
	default:
		return "UNKNOWN"
	}
}

// ReplicaPreference mirrors MemoryDistance as a query-option value; kept as
// a distinct type so query options can't be confused with a computed
// distance.
type ReplicaPreference int

const (
	PreferCacheLocal ReplicaPreference = iota
	PreferDiskLocal
	PreferRemote
)

// AsDistance converts a preference into its corresponding minimum
// MemoryDistance.
func (p ReplicaPreference) AsDistance() MemoryDistance {
	return MemoryDistance(p)
}

// ScanRangeHint carries per-plan-node scheduling overrides (spec §4.5).
type ScanRangeHint struct {
	// ReplicaPreferenceOverride, if non-nil, is stricter-or-equal combined
	// with the query-wide option: the effective minimum distance is the
	// stricter of the two.
	ReplicaPreferenceOverride *ReplicaPreference
	// ExecAtCoord forces every scan range of this node onto the
	// coordinator, bypassing locality/load entirely.
	ExecAtCoord bool
}
