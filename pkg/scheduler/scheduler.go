// Package scheduler implements the Scheduler facade (spec §4.7, C7): the
// single entry point that snapshots cluster membership, runs the scan
// assigner over every scan node, expands fragments, and returns a
// QuerySchedule.
package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/vectorsql/vectorsql/pkg/fragment"
	"github.com/vectorsql/vectorsql/pkg/log"
	"github.com/vectorsql/vectorsql/pkg/membership"
	"github.com/vectorsql/vectorsql/pkg/metrics"
	"github.com/vectorsql/vectorsql/pkg/rng"
	"github.com/vectorsql/vectorsql/pkg/scanassign"
	"github.com/vectorsql/vectorsql/pkg/vqtypes"
)

// Scheduler is the scheduler facade. Construct one with New and reuse it
// across queries; it holds no per-query state.
type Scheduler struct {
	tracker  *membership.Tracker
	assigner *scanassign.Assigner
	planner  *fragment.Planner
	logger   zerolog.Logger
}

// New creates a Scheduler reading membership from tracker.
func New(tracker *membership.Tracker) *Scheduler {
	return &Scheduler{
		tracker:  tracker,
		assigner: scanassign.New(),
		planner:  fragment.New(),
		logger:   log.WithComponent("scheduler"),
	}
}

// Schedule implements the C7 facade: it takes a read-only snapshot of
// membership, assigns every scan node's ranges, expands every plan's
// fragments, and returns the resulting QuerySchedule.
func (s *Scheduler) Schedule(ctx context.Context, req *vqtypes.QueryExecRequest) (*vqtypes.QuerySchedule, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingLatency)

	logger := log.WithQueryID(s.logger, req.QueryID)

	snapshot := s.tracker.Snapshot()
	src := rng.New(req.Options.RandSeed)

	schedule := &vqtypes.QuerySchedule{
		QueryID:              req.QueryID,
		FragmentInstances:    make(map[int32][]*vqtypes.FragmentInstance),
		ExchangeDestinations: make(map[int32][]vqtypes.ExchangeDestination),
		CoordAddress:         req.CoordAddress,
	}

	for _, plan := range req.Plans {
		assignments, err := s.assignScans(snapshot, plan, req.Options, src, req.CoordAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to assign scan ranges: %w", err)
		}

		opts := fragment.Options{
			MtDop:         req.Options.MtDop,
			ScanHostsOnly: req.Options.ScanHostsOnly,
		}
		instances, dests, err := s.planner.Plan(plan.Fragments, assignments, req.CoordAddress, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to plan fragments: %w", err)
		}

		for fragID, insts := range instances {
			schedule.FragmentInstances[fragID] = insts
		}
		for fragID, d := range dests {
			schedule.ExchangeDestinations[fragID] = d
		}

		for _, res := range assignments {
			schedule.Counters.Add(vqtypes.ScheduleCounters{
				CachedBytes:    res.Counters.CachedBytes,
				DiskLocalBytes: res.Counters.DiskLocalBytes,
				RemoteBytes:    res.Counters.RemoteBytes,
			})
			for _, as := range res.ByIP {
				for _, a := range as {
					schedule.Counters.TotalAssignments++
					if a.Distance == vqtypes.Remote {
						schedule.Counters.RemoteAssignments++
					} else {
						schedule.Counters.LocalAssignments++
					}
				}
			}
		}
	}

	metrics.TotalAssignments.Add(float64(schedule.Counters.TotalAssignments))
	metrics.LocalAssignments.Add(float64(schedule.Counters.LocalAssignments))
	metrics.RemoteAssignments.Add(float64(schedule.Counters.RemoteAssignments))

	logger.Debug().
		Int64("total_assignments", schedule.Counters.TotalAssignments).
		Int64("local_assignments", schedule.Counters.LocalAssignments).
		Msg("scheduled query")

	return schedule, nil
}

func (s *Scheduler) assignScans(
	snapshot *vqtypes.BackendConfig,
	plan *vqtypes.PlanExecInfo,
	opts vqtypes.QueryOptions,
	src *rng.Source,
	coordAddress vqtypes.NetworkAddress,
) (map[int32]*scanassign.Result, error) {
	// nodeIDs are sorted before iterating, not walked off the map directly:
	// every scan node draws from the same shared src, so map iteration
	// order would leak into the random draw sequence and break the
	// identical-seed-identical-output determinism guarantee.
	nodeIDs := make([]int32, 0, len(plan.PerNodeScanRanges))
	for nodeID := range plan.PerNodeScanRanges {
		nodeIDs = append(nodeIDs, nodeID)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })

	out := make(map[int32]*scanassign.Result, len(plan.PerNodeScanRanges))
	for _, nodeID := range nodeIDs {
		ranges := plan.PerNodeScanRanges[nodeID]
		timer := metrics.NewTimer()

		var hint *vqtypes.ScanRangeHint
		if h, ok := plan.PerNodeHints[nodeID]; ok {
			hint = &h
		}

		res, err := s.assigner.AssignScanRanges(snapshot, plan.HostList, ranges, hint, opts, src, coordAddress)
		timer.ObserveDuration(metrics.ScanAssignmentLatency)
		if err != nil {
			return nil, fmt.Errorf("scan node %d: %w", nodeID, err)
		}
		out[nodeID] = res
	}
	return out, nil
}
