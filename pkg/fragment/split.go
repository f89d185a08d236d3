package fragment

import (
	"sort"

	"github.com/vectorsql/vectorsql/pkg/scanassign"
)

// splitByteWeighted distributes one host's per-scan-node assignments
// across up to mtDop instances by greedy byte-weighted round robin (spec
// §4.6 mt_dop splitting): each range goes to whichever bucket currently
// holds the fewest bytes, largest ranges first, so the buckets converge on
// equal totals rather than minimizing variance exactly (left as an
// implementer's choice by the open design question).
//
// The result always has exactly mtDop entries; entries that ended up empty
// (more instances requested than ranges to spread) carry no assignments,
// and planScanOnly creates no instance for them.
func splitByteWeighted(perNode map[int32][]scanassign.Assignment, mtDop int) []map[int32][]scanassign.Assignment {
	buckets := make([]map[int32][]scanassign.Assignment, mtDop)
	bucketBytes := make([]int64, mtDop)
	for i := range buckets {
		buckets[i] = make(map[int32][]scanassign.Assignment)
	}

	if mtDop == 1 {
		buckets[0] = perNode
		return buckets
	}

	type item struct {
		nodeID int32
		a      scanassign.Assignment
	}
	nodeIDs := make([]int32, 0, len(perNode))
	for nodeID := range perNode {
		nodeIDs = append(nodeIDs, nodeID)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })

	var items []item
	for _, nodeID := range nodeIDs {
		for _, a := range perNode[nodeID] {
			items = append(items, item{nodeID: nodeID, a: a})
		}
	}
	// Largest ranges first so the greedy placement converges faster on an
	// even split; ties keep the original per-node order, since this
	// insertion sort only swaps an item past a strictly smaller one.
	for i := 1; i < len(items); i++ {
		j := i
		for j > 0 && items[j].a.Range.LengthBytes > items[j-1].a.Range.LengthBytes {
			items[j], items[j-1] = items[j-1], items[j]
			j--
		}
	}

	for _, it := range items {
		minIdx := 0
		for i := 1; i < mtDop; i++ {
			if bucketBytes[i] < bucketBytes[minIdx] {
				minIdx = i
			}
		}
		buckets[minIdx][it.nodeID] = append(buckets[minIdx][it.nodeID], it.a)
		bucketBytes[minIdx] += it.a.Range.LengthBytes
	}

	return buckets
}
