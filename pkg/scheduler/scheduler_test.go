package scheduler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorsql/vectorsql/pkg/membership"
	"github.com/vectorsql/vectorsql/pkg/topicfeed"
	"github.com/vectorsql/vectorsql/pkg/vqtypes"
)

func registerExecutor(t *testing.T, tr *membership.Tracker, key, ip string) {
	t.Helper()
	desc := &vqtypes.BackendDescriptor{
		Address:    vqtypes.NetworkAddress{Host: ip, Port: 22000},
		IP:         ip,
		IsExecutor: true,
	}
	data, err := json.Marshal(desc)
	require.NoError(t, err)
	tr.Apply(topicfeed.Delta{Entries: []topicfeed.Entry{{Key: key, Payload: data}}})
}

// TestScheduleEndToEnd exercises the full facade: two executors registered
// through membership, a two-fragment plan (a scan fragment feeding an
// unpartitioned root via exchange), scheduled end to end.
func TestScheduleEndToEnd(t *testing.T) {
	tr := membership.NewTracker()
	registerExecutor(t, tr, "b1", "10.0.0.1")
	registerExecutor(t, tr, "b2", "10.0.0.2")

	scanNode := &vqtypes.PlanNode{ID: 1, Kind: vqtypes.Scan}
	scanFrag := &vqtypes.Fragment{ID: 1, PlanRoot: scanNode, OutputFragment: 0}
	exchangeNode := &vqtypes.PlanNode{ID: 2, Kind: vqtypes.Exchange, InputFragmentID: 1}
	rootFrag := &vqtypes.Fragment{
		ID:             0,
		PlanRoot:       exchangeNode,
		DataPartition:  vqtypes.Unpartitioned,
		InputFragments: []int32{1},
		OutputFragment: -1,
	}

	hostList := []vqtypes.NetworkAddress{
		{Host: "10.0.0.1", Port: 22000},
		{Host: "10.0.0.2", Port: 22000},
	}
	ranges := []vqtypes.ScanRange{
		{LengthBytes: 1 << 20, Locations: []vqtypes.ReplicaLocation{{HostIdx: 0, IsCached: false}}},
		{LengthBytes: 1 << 20, Locations: []vqtypes.ReplicaLocation{{HostIdx: 1, IsCached: false}}},
	}

	plan := &vqtypes.PlanExecInfo{
		Fragments:         []*vqtypes.Fragment{rootFrag, scanFrag},
		HostList:          hostList,
		PerNodeScanRanges: map[int32][]vqtypes.ScanRange{1: ranges},
	}

	coord := vqtypes.NetworkAddress{Host: "10.0.0.99", Port: 21000}
	req := &vqtypes.QueryExecRequest{
		QueryID:      "q1",
		Plans:        []*vqtypes.PlanExecInfo{plan},
		Options:      vqtypes.DefaultQueryOptions(),
		CoordAddress: coord,
	}

	sched := New(tr)
	schedule, err := sched.Schedule(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, schedule.FragmentInstances[1], 2, "scan fragment gets one instance per executor")
	require.Len(t, schedule.FragmentInstances[0], 1, "unpartitioned root runs once, on the coordinator")
	assert.Equal(t, coord, schedule.FragmentInstances[0][0].Host)

	assert.Equal(t, int64(2), schedule.Counters.TotalAssignments)
	assert.Equal(t, int64(2)<<20, schedule.Counters.DiskLocalBytes)
}

// TestScheduleDeterministicAcrossRuns covers spec property 6: identical
// snapshot, plan, and RandSeed produce byte-identical schedules.
func TestScheduleDeterministicAcrossRuns(t *testing.T) {
	tr := membership.NewTracker()
	registerExecutor(t, tr, "b1", "10.0.0.1")
	registerExecutor(t, tr, "b2", "10.0.0.2")

	scanNode := &vqtypes.PlanNode{ID: 1, Kind: vqtypes.Scan}
	scanFrag := &vqtypes.Fragment{ID: 1, PlanRoot: scanNode, OutputFragment: -1}

	var ranges []vqtypes.ScanRange
	for i := 0; i < 20; i++ {
		ranges = append(ranges, vqtypes.ScanRange{
			LengthBytes: int64(100 + i),
			Locations: []vqtypes.ReplicaLocation{
				{HostIdx: 0, IsCached: false},
				{HostIdx: 1, IsCached: false},
			},
		})
	}

	hostList := []vqtypes.NetworkAddress{
		{Host: "10.0.0.1", Port: 22000},
		{Host: "10.0.0.2", Port: 22000},
	}
	plan := &vqtypes.PlanExecInfo{
		Fragments:         []*vqtypes.Fragment{scanFrag},
		HostList:          hostList,
		PerNodeScanRanges: map[int32][]vqtypes.ScanRange{1: ranges},
	}

	opts := vqtypes.DefaultQueryOptions()
	opts.ScheduleRandomReplica = true
	opts.RandSeed = 42

	req := &vqtypes.QueryExecRequest{QueryID: "q1", Plans: []*vqtypes.PlanExecInfo{plan}, Options: opts}

	sched := New(tr)
	first, err := sched.Schedule(context.Background(), req)
	require.NoError(t, err)
	second, err := sched.Schedule(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Counters, second.Counters)
	assert.Equal(t, len(first.FragmentInstances[1]), len(second.FragmentInstances[1]))
}
