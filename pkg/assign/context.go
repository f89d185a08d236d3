package assign

import (
	"github.com/vectorsql/vectorsql/pkg/rng"
	"github.com/vectorsql/vectorsql/pkg/vqtypes"
)

// ByteCounters tracks the bytes recorded against each memory distance class
// during one scan-assignment pass.
type ByteCounters struct {
	CachedBytes    int64
	DiskLocalBytes int64
	RemoteBytes    int64
}

// Context is the per-plan-node scheduling state described in spec §4.4: a
// heap plus the cursors needed to pick between equally-loaded backends and
// round-robin across multiple ports on the same host. One Context is
// created per scan node and discarded once that node's ranges are all
// assigned.
type Context struct {
	heap *AssignmentHeap

	// randomBackendOrder is a random permutation of the executor IPs,
	// used both for the unused-backend cursor and as the rank lookup.
	randomBackendOrder []string
	rankByIP           map[string]int

	firstUnusedCursor int

	// nextPortCursor round-robins among the backend descriptors sharing
	// one IP.
	nextPortCursor  map[string]int
	descriptorsByIP map[string][]*vqtypes.BackendDescriptor

	assignedBytesByIP map[string]int64
	counters          ByteCounters
}

// NewContext builds a Context over the given executor descriptors, using
// src to draw the random rank permutation. Descriptors sharing an IP are
// grouped for round-robin port selection.
func NewContext(executors []*vqtypes.BackendDescriptor, src *rng.Source) *Context {
	descriptorsByIP := make(map[string][]*vqtypes.BackendDescriptor)
	var ips []string
	for _, d := range executors {
		if _, seen := descriptorsByIP[d.IP]; !seen {
			ips = append(ips, d.IP)
		}
		descriptorsByIP[d.IP] = append(descriptorsByIP[d.IP], d)
	}

	perm := src.Permutation(len(ips))
	order := make([]string, len(ips))
	rankByIP := make(map[string]int, len(ips))
	for i, ip := range ips {
		pos := perm[i]
		order[pos] = ip
		rankByIP[ip] = pos
	}

	h := NewAssignmentHeap()
	for _, ip := range ips {
		h.InsertOrUpdate(ip, 0, rankByIP[ip])
	}

	return &Context{
		heap:               h,
		randomBackendOrder: order,
		rankByIP:           rankByIP,
		nextPortCursor:     make(map[string]int),
		descriptorsByIP:    descriptorsByIP,
		assignedBytesByIP:  make(map[string]int64),
	}
}

// SelectLocal picks among candidateIPs (already filtered by the caller to
// executors present in the range's data locations) the one currently
// least-loaded. breakTiesByRank selects random-fair vs input-order
// tie-breaking, per spec §4.5 step 4/5.
func (c *Context) SelectLocal(candidateIPs []string, breakTiesByRank bool) (string, bool) {
	return c.heap.TopAmong(candidateIPs, breakTiesByRank)
}

// SelectRemote returns the next unused backend in random order, falling
// back to the globally least-loaded backend once every backend has been
// used at least once (spec §4.4 select_remote).
func (c *Context) SelectRemote() (string, bool) {
	if c.firstUnusedCursor < len(c.randomBackendOrder) {
		ip := c.randomBackendOrder[c.firstUnusedCursor]
		c.firstUnusedCursor++
		return ip, true
	}
	return c.heap.Top()
}

// PickPortOn round-robins across the backend descriptors registered at ip.
func (c *Context) PickPortOn(ip string) *vqtypes.BackendDescriptor {
	descs := c.descriptorsByIP[ip]
	if len(descs) == 0 {
		return nil
	}
	idx := c.nextPortCursor[ip] % len(descs)
	c.nextPortCursor[ip] = idx + 1
	return descs[idx]
}

// Distance classifies the memory distance a recorded assignment fell into,
// for byte-counter bookkeeping.
type Distance = vqtypes.MemoryDistance

// Record books the assignment of lengthBytes to backend at the given
// distance, and advances the backend's heap key. Per spec §4.5 edge cases,
// a zero-length range still advances the heap key by one so a backend fed
// only zero-length ranges doesn't win every subsequent Top()/TopAmong()
// forever; the byte counters still record the real (zero) length.
func (c *Context) Record(ip string, lengthBytes int64, distance Distance) {
	c.assignedBytesByIP[ip] += lengthBytes

	heapDelta := lengthBytes
	if heapDelta < 1 {
		heapDelta = 1
	}
	c.heap.InsertOrUpdate(ip, heapDelta, c.rankByIP[ip])

	switch distance {
	case vqtypes.CacheLocal:
		c.counters.CachedBytes += lengthBytes
	case vqtypes.DiskLocal:
		c.counters.DiskLocalBytes += lengthBytes
	case vqtypes.Remote:
		c.counters.RemoteBytes += lengthBytes
	}
}

// RecordCoordinatorAssignment books lengthBytes routed straight to the
// coordinator via exec_at_coord (spec §4.5 step 1). The coordinator is not
// part of the executor pool this Context load-balances over, so this only
// updates the byte counters — it never touches the heap or port cursors,
// which would otherwise insert a bogus heap entry for a non-executor IP.
func (c *Context) RecordCoordinatorAssignment(lengthBytes int64) {
	c.counters.RemoteBytes += lengthBytes
}

// AssignedBytes returns the running total recorded against ip.
func (c *Context) AssignedBytes(ip string) int64 {
	return c.assignedBytesByIP[ip]
}

// Counters returns the byte counters accumulated so far.
func (c *Context) Counters() ByteCounters {
	return c.counters
}
