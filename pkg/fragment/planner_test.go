package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorsql/vectorsql/pkg/scanassign"
	"github.com/vectorsql/vectorsql/pkg/vqtypes"
)

func backend(ip string) *vqtypes.BackendDescriptor {
	return &vqtypes.BackendDescriptor{Address: vqtypes.NetworkAddress{Host: ip, Port: 22000}, IP: ip, IsExecutor: true}
}

// Scenario F: an unpartitioned root fragment with no scans places exactly
// one instance, on the coordinator, regardless of executor count.
func TestScenarioF_UnpartitionedOnCoordinator(t *testing.T) {
	root := &vqtypes.PlanNode{ID: 1, Kind: vqtypes.Other}
	f := &vqtypes.Fragment{ID: 0, PlanRoot: root, DataPartition: vqtypes.Unpartitioned, OutputFragment: -1}

	coord := vqtypes.NetworkAddress{Host: "10.0.0.99", Port: 21000}
	p := New()
	instances, _, err := p.Plan([]*vqtypes.Fragment{f}, map[int32]*scanassign.Result{}, coord, Options{MtDop: 1})
	require.NoError(t, err)

	require.Len(t, instances[0], 1)
	assert.Equal(t, coord, instances[0][0].Host)
	assert.Equal(t, 0, instances[0][0].InstanceIndex)
}

func TestScanOnlyOneInstancePerAssignedHost(t *testing.T) {
	scanNode := &vqtypes.PlanNode{ID: 1, Kind: vqtypes.Scan}
	f := &vqtypes.Fragment{ID: 1, PlanRoot: scanNode, DataPartition: vqtypes.Random, OutputFragment: -1}

	assignments := map[int32]*scanassign.Result{
		1: {
			ByIP: map[string][]scanassign.Assignment{
				"10.0.0.1": {{Backend: backend("10.0.0.1"), Range: vqtypes.ScanRange{LengthBytes: 1024}}},
				"10.0.0.2": {{Backend: backend("10.0.0.2"), Range: vqtypes.ScanRange{LengthBytes: 2048}}},
			},
		},
	}

	p := New()
	instances, _, err := p.Plan([]*vqtypes.Fragment{f}, assignments, vqtypes.NetworkAddress{}, Options{MtDop: 1})
	require.NoError(t, err)

	require.Len(t, instances[1], 2)
	hosts := []string{instances[1][0].Host.Host, instances[1][1].Host.Host}
	assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.0.2"}, hosts)
}

func TestScanOnlyMtDopSplitsByHostIntoMultipleInstances(t *testing.T) {
	scanNode := &vqtypes.PlanNode{ID: 1, Kind: vqtypes.Scan}
	f := &vqtypes.Fragment{ID: 1, PlanRoot: scanNode, OutputFragment: -1}

	var as []scanassign.Assignment
	for i := 0; i < 4; i++ {
		as = append(as, scanassign.Assignment{Backend: backend("10.0.0.1"), Range: vqtypes.ScanRange{LengthBytes: 1024}})
	}
	assignments := map[int32]*scanassign.Result{
		1: {ByIP: map[string][]scanassign.Assignment{"10.0.0.1": as}},
	}

	p := New()
	instances, _, err := p.Plan([]*vqtypes.Fragment{f}, assignments, vqtypes.NetworkAddress{}, Options{MtDop: 2})
	require.NoError(t, err)

	require.Len(t, instances[1], 2)
	total := 0
	for _, inst := range instances[1] {
		for _, ranges := range inst.PerNodeScanRanges {
			total += len(ranges)
		}
	}
	assert.Equal(t, 4, total)
}

func TestCollocatedFragmentMirrorsInputHosts(t *testing.T) {
	scanNode := &vqtypes.PlanNode{ID: 1, Kind: vqtypes.Scan}
	scanFrag := &vqtypes.Fragment{ID: 1, PlanRoot: scanNode, OutputFragment: 0}
	collocatedRoot := &vqtypes.PlanNode{ID: 2, Kind: vqtypes.Other}
	collocatedFrag := &vqtypes.Fragment{ID: 0, PlanRoot: collocatedRoot, InputFragments: []int32{1}, OutputFragment: -1}

	assignments := map[int32]*scanassign.Result{
		1: {ByIP: map[string][]scanassign.Assignment{
			"10.0.0.1": {{Backend: backend("10.0.0.1"), Range: vqtypes.ScanRange{LengthBytes: 1}}},
		}},
	}

	p := New()
	instances, _, err := p.Plan([]*vqtypes.Fragment{collocatedFrag, scanFrag}, assignments, vqtypes.NetworkAddress{}, Options{MtDop: 1})
	require.NoError(t, err)

	require.Len(t, instances[0], 1)
	assert.Equal(t, "10.0.0.1", instances[0][0].Host.Host)
}

// TestScanOnlyExecAtCoordPlacesInstanceOnCoordinator covers the exec_at_coord
// path end to end: a scan assignment landing on the coordinator descriptor
// (vqtypes.CoordinatorDescriptor, not a snapshot-looked-up executor) must
// still flow through planScanOnly/splitHost without a nil Backend.
func TestScanOnlyExecAtCoordPlacesInstanceOnCoordinator(t *testing.T) {
	scanNode := &vqtypes.PlanNode{ID: 1, Kind: vqtypes.Scan}
	f := &vqtypes.Fragment{ID: 1, PlanRoot: scanNode, OutputFragment: -1}

	coord := vqtypes.NetworkAddress{Host: "10.0.0.99", Port: 21000}
	assignments := map[int32]*scanassign.Result{
		1: {ByIP: map[string][]scanassign.Assignment{
			coord.Host: {{Backend: vqtypes.CoordinatorDescriptor(coord), Range: vqtypes.ScanRange{LengthBytes: 512}, Distance: vqtypes.Remote}},
		}},
	}

	p := New()
	instances, _, err := p.Plan([]*vqtypes.Fragment{f}, assignments, coord, Options{MtDop: 1})
	require.NoError(t, err)

	require.Len(t, instances[1], 1)
	assert.Equal(t, coord, instances[1][0].Host)
}

func TestExchangeWiringDenseSenderIDs(t *testing.T) {
	scanNode := &vqtypes.PlanNode{ID: 1, Kind: vqtypes.Scan}
	scanFrag := &vqtypes.Fragment{ID: 1, PlanRoot: scanNode, OutputFragment: 0}
	unpartitionedRoot := &vqtypes.PlanNode{ID: 2, Kind: vqtypes.Exchange, InputFragmentID: 1}
	rootFrag := &vqtypes.Fragment{ID: 0, PlanRoot: unpartitionedRoot, DataPartition: vqtypes.Unpartitioned, InputFragments: []int32{1}, OutputFragment: -1}

	assignments := map[int32]*scanassign.Result{
		1: {ByIP: map[string][]scanassign.Assignment{
			"10.0.0.1": {{Backend: backend("10.0.0.1"), Range: vqtypes.ScanRange{LengthBytes: 1}}},
			"10.0.0.2": {{Backend: backend("10.0.0.2"), Range: vqtypes.ScanRange{LengthBytes: 1}}},
		}},
	}

	coord := vqtypes.NetworkAddress{Host: "10.0.0.99", Port: 21000}
	p := New()
	instances, dests, err := p.Plan([]*vqtypes.Fragment{rootFrag, scanFrag}, assignments, coord, Options{MtDop: 1})
	require.NoError(t, err)

	senderIDs := make(map[int32]bool)
	for _, inst := range instances[1] {
		senderIDs[inst.SenderID] = true
	}
	assert.Len(t, senderIDs, 2, "every scan instance gets a distinct dense sender id")

	require.Len(t, instances[0], 1)
	assert.Equal(t, int32(2), instances[0][0].NumSendersPerExchange[1])

	require.Len(t, dests[1], 1)
	assert.Equal(t, int32(0), dests[1][0].FragmentID)
}
