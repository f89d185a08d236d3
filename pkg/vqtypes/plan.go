package vqtypes

import "fmt"

// PlanNodeKind distinguishes the plan-node shapes the scheduler cares
// about; every other operator (filter, project, aggregate, sort, ...) is
// collapsed into Other since fragment placement only dispatches on these.
type PlanNodeKind string

const (
	Scan     PlanNodeKind = "SCAN"
	Union    PlanNodeKind = "UNION"
	Exchange PlanNodeKind = "EXCHANGE"
	HashJoin PlanNodeKind = "HASH_JOIN"
	Other    PlanNodeKind = "OTHER"
)

// DataPartitionType describes how rows produced by a fragment (or consumed
// through an exchange) are partitioned across instances.
type DataPartitionType string

const (
	Unpartitioned DataPartitionType = "UNPARTITIONED"
	Hash          DataPartitionType = "HASH"
	Random        DataPartitionType = "RANDOM"
)

// PlanNode is one node of a fragment's plan subtree.
type PlanNode struct {
	ID       int32
	Kind     PlanNodeKind
	Children []*PlanNode

	// InputFragmentID is set on EXCHANGE nodes: the id of the fragment
	// whose output this exchange receives.
	InputFragmentID int32
	// ExchangePartition is set on EXCHANGE nodes: how the incoming rows are
	// partitioned among this fragment's consuming instances.
	ExchangePartition DataPartitionType
}

// Fragment is a maximal plan subtree with no EXCHANGE edge crossing it.
type Fragment struct {
	ID             int32
	PlanRoot       *PlanNode
	DataPartition  DataPartitionType
	InputFragments []int32
	// OutputFragment is the id of the fragment that consumes this
	// fragment's output via exchange, or -1 if this is the root
	// (coordinator) fragment.
	OutputFragment int32
}

// FragmentInstance is one execution of a Fragment on one host.
type FragmentInstance struct {
	FragmentID int32
	InstanceID string
	Host       NetworkAddress
	// InstanceIndex is this instance's position within its fragment's
	// instance list, used to address it from ExchangeDestination.
	InstanceIndex int

	// PerNodeScanRanges holds, for every SCAN node in the fragment, the
	// scan ranges assigned to this instance's host.
	PerNodeScanRanges map[int32][]ScanRange

	// SenderID is this instance's dense sender id (0..N-1) within its
	// fragment, used when the fragment's root feeds an exchange.
	SenderID int32

	// NumSendersPerExchange records, for each input fragment this
	// instance's fragment consumes via exchange, how many of that
	// fragment's sender instances it should expect data from. Keyed by the
	// producing fragment's id, not the EXCHANGE plan-node id.
	NumSendersPerExchange map[int32]int32
}

// ExchangeDestination addresses one consuming fragment instance, as
// referenced from the producing side's exchange wiring.
type ExchangeDestination struct {
	FragmentID    int32
	InstanceIndex int
}

// FragmentInstanceID renders a stable, human-readable instance identifier.
func FragmentInstanceID(fragmentID int32, index int) string {
	return fmt.Sprintf("f%d-i%d", fragmentID, index)
}
