// Package assign implements the per-query scheduling state used by the scan
// assigner (spec §4.3 AddressableAssignmentHeap, §4.4 AssignmentContext):
// a least-loaded-backend min-heap with O(log n) update-by-key, and the
// cursors/counters built on top of it.
package assign

import "container/heap"

// element is one backend's position in the assignment heap.
type element struct {
	ip            string
	assignedBytes int64
	rank          int
	index         int // maintained by container/heap
}

// heapData is the container/heap.Interface implementation. It is unexported;
// callers only ever interact with AssignmentHeap.
type heapData []*element

func (h heapData) Len() int { return len(h) }

func (h heapData) Less(i, j int) bool {
	if h[i].assignedBytes != h[j].assignedBytes {
		return h[i].assignedBytes < h[j].assignedBytes
	}
	return h[i].rank < h[j].rank
}

func (h heapData) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *heapData) Push(x interface{}) {
	e := x.(*element)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *heapData) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// AssignmentHeap is a min-heap over backend IPs ordered by
// (assigned_bytes ASC, random_rank ASC), with O(log n) insert-or-update by
// IP via a side index of handles.
type AssignmentHeap struct {
	data heapData
	byIP map[string]*element
}

// NewAssignmentHeap creates an empty heap.
func NewAssignmentHeap() *AssignmentHeap {
	return &AssignmentHeap{byIP: make(map[string]*element)}
}

// InsertOrUpdate inserts ip with the given rank and deltaBytes if absent, or
// increases its assigned-bytes key by deltaBytes if already present. Rank is
// only used on first insertion; later calls ignore it.
func (h *AssignmentHeap) InsertOrUpdate(ip string, deltaBytes int64, rank int) {
	if e, ok := h.byIP[ip]; ok {
		e.assignedBytes += deltaBytes
		heap.Fix(&h.data, e.index)
		return
	}
	e := &element{ip: ip, assignedBytes: deltaBytes, rank: rank}
	h.byIP[ip] = e
	heap.Push(&h.data, e)
}

// Top returns the IP currently at the minimum of the heap, and whether the
// heap is non-empty.
func (h *AssignmentHeap) Top() (string, bool) {
	if h.data.Len() == 0 {
		return "", false
	}
	return h.data[0].ip, true
}

// AssignedBytes returns the current assigned-bytes total for ip, or 0 if
// unknown to this heap.
func (h *AssignmentHeap) AssignedBytes(ip string) int64 {
	if e, ok := h.byIP[ip]; ok {
		return e.assignedBytes
	}
	return 0
}

// Len reports the number of distinct IPs tracked by the heap.
func (h *AssignmentHeap) Len() int {
	return h.data.Len()
}

// TopAmong returns the least-loaded IP restricted to candidates, without
// mutating the heap. It scans candidates directly rather than through the
// heap structure, since the heap only orders its own full membership, not
// arbitrary subsets.
//
// When breakTiesByRank is true, ties on assigned bytes are broken by random
// rank; when false, the first candidate in the given order with minimal
// assigned bytes wins, preserving input order (spec §4.4 select_local).
func (h *AssignmentHeap) TopAmong(candidates []string, breakTiesByRank bool) (string, bool) {
	var best *element
	for _, ip := range candidates {
		e, ok := h.byIP[ip]
		if !ok {
			continue
		}
		if best == nil || e.assignedBytes < best.assignedBytes {
			best = e
			continue
		}
		if breakTiesByRank && e.assignedBytes == best.assignedBytes && e.rank < best.rank {
			best = e
		}
	}
	if best == nil {
		return "", false
	}
	return best.ip, true
}
