// Package fragment implements the FragmentPlanner (spec §4.6, C6): given
// per-scan-node assignments from pkg/scanassign and a query's fragment
// tree, it produces fragment instances and their exchange wiring.
package fragment

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/vectorsql/vectorsql/pkg/log"
	"github.com/vectorsql/vectorsql/pkg/scanassign"
	"github.com/vectorsql/vectorsql/pkg/schederrors"
	"github.com/vectorsql/vectorsql/pkg/vqtypes"
)

// Options configures fragment planning beyond what's in QueryOptions.
type Options struct {
	MtDop int
	// ScanHostsOnly restricts a Union fragment that also contains scan
	// nodes to just the scan hosts, instead of the union with every
	// input fragment's instance hosts. The sampled source hints this
	// restriction may become the default; left as an opt-in hook per
	// the open design question.
	ScanHostsOnly bool
}

// Planner expands a query's fragments into fragment instances.
type Planner struct {
	logger zerolog.Logger
}

// New creates a Planner.
func New() *Planner {
	return &Planner{logger: log.WithComponent("fragment")}
}

// Plan expands every fragment in fragments into its instances. assignments
// maps a scan plan-node ID to the scanassign.Result produced for it;
// coordAddress is the query's coordinator. Fragments must be given in any
// order; Plan resolves the dependency order internally via InputFragments.
func (p *Planner) Plan(
	fragments []*vqtypes.Fragment,
	assignments map[int32]*scanassign.Result,
	coordAddress vqtypes.NetworkAddress,
	opts Options,
) (map[int32][]*vqtypes.FragmentInstance, map[int32][]vqtypes.ExchangeDestination, error) {
	byID := make(map[int32]*vqtypes.Fragment, len(fragments))
	for _, f := range fragments {
		byID[f.ID] = f
	}

	instances := make(map[int32][]*vqtypes.FragmentInstance)
	order, err := topoOrder(fragments, byID)
	if err != nil {
		return nil, nil, err
	}

	for _, f := range order {
		logger := log.WithFragmentID(p.logger, f.ID)
		inst, err := p.planOne(f, byID, assignments, instances, coordAddress, opts)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug().Int("instance_count", len(inst)).Msg("planned fragment")
		instances[f.ID] = inst
	}

	exchangeDests := wireExchanges(fragments, byID, instances)

	return instances, exchangeDests, nil
}

// topoOrder returns fragments ordered so every fragment appears after all
// of its InputFragments.
func topoOrder(fragments []*vqtypes.Fragment, byID map[int32]*vqtypes.Fragment) ([]*vqtypes.Fragment, error) {
	var out []*vqtypes.Fragment
	visited := make(map[int32]int) // 0=unvisited, 1=in-progress, 2=done

	var visit func(f *vqtypes.Fragment) error
	visit = func(f *vqtypes.Fragment) error {
		switch visited[f.ID] {
		case 2:
			return nil
		case 1:
			return schederrors.ErrInternal
		}
		visited[f.ID] = 1
		for _, inputID := range f.InputFragments {
			input, ok := byID[inputID]
			if !ok {
				return schederrors.ErrInternal
			}
			if err := visit(input); err != nil {
				return err
			}
		}
		visited[f.ID] = 2
		out = append(out, f)
		return nil
	}

	for _, f := range fragments {
		if err := visit(f); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *Planner) planOne(
	f *vqtypes.Fragment,
	byID map[int32]*vqtypes.Fragment,
	assignments map[int32]*scanassign.Result,
	instances map[int32][]*vqtypes.FragmentInstance,
	coordAddress vqtypes.NetworkAddress,
	opts Options,
) ([]*vqtypes.FragmentInstance, error) {
	scanIDs := collectScans(f.PlanRoot)

	switch {
	// A fragment with no scans of its own and no inputs is the trivial
	// single-fragment plan: it runs once, on the coordinator.
	case len(scanIDs) == 0 && len(f.InputFragments) == 0:
		return p.planUnpartitioned(f, coordAddress), nil

	// Any fragment whose own output is unpartitioned always runs on the
	// coordinator (GLOSSARY: "Coordinator ... always receives
	// unpartitioned fragments"), regardless of how many fragments feed it.
	case f.DataPartition == vqtypes.Unpartitioned && len(scanIDs) == 0:
		return p.planUnpartitioned(f, coordAddress), nil

	case len(scanIDs) == 0 && len(f.InputFragments) == 1:
		return p.planCollocated(f, instances[f.InputFragments[0]]), nil

	case len(scanIDs) > 0 && len(f.InputFragments) <= 1:
		return p.planScanOnly(f, scanIDs, assignments, opts)

	default:
		return p.planUnion(f, scanIDs, assignments, byID, instances, opts)
	}
}

func (p *Planner) planUnpartitioned(f *vqtypes.Fragment, coordAddress vqtypes.NetworkAddress) []*vqtypes.FragmentInstance {
	return []*vqtypes.FragmentInstance{
		{
			FragmentID:            f.ID,
			InstanceID:            instanceID(f.ID, 0),
			Host:                  coordAddress,
			InstanceIndex:         0,
			PerNodeScanRanges:     map[int32][]vqtypes.ScanRange{},
			NumSendersPerExchange: map[int32]int32{},
		},
	}
}

func (p *Planner) planCollocated(f *vqtypes.Fragment, inputInstances []*vqtypes.FragmentInstance) []*vqtypes.FragmentInstance {
	out := make([]*vqtypes.FragmentInstance, len(inputInstances))
	for i, in := range inputInstances {
		out[i] = &vqtypes.FragmentInstance{
			FragmentID:            f.ID,
			InstanceID:            instanceID(f.ID, i),
			Host:                  in.Host,
			InstanceIndex:         i,
			PerNodeScanRanges:     map[int32][]vqtypes.ScanRange{},
			NumSendersPerExchange: map[int32]int32{},
		}
	}
	return out
}

func (p *Planner) planScanOnly(
	f *vqtypes.Fragment,
	scanIDs []int32,
	assignments map[int32]*scanassign.Result,
	opts Options,
) ([]*vqtypes.FragmentInstance, error) {
	leftmost := leftmostScan(f.PlanRoot)
	if leftmost < 0 {
		return nil, schederrors.ErrInternal
	}
	placementResult, ok := assignments[leftmost]
	if !ok {
		return nil, schederrors.ErrMalformedPlan
	}

	hosts := make([]string, 0, len(placementResult.ByIP))
	for ip := range placementResult.ByIP {
		hosts = append(hosts, ip)
	}
	sort.Strings(hosts)

	mtDop := opts.MtDop
	if mtDop < 1 {
		mtDop = 1
	}

	var out []*vqtypes.FragmentInstance
	for _, ip := range hosts {
		perNode := make(map[int32][]scanassign.Assignment)
		for _, nodeID := range scanIDs {
			res, ok := assignments[nodeID]
			if !ok {
				continue
			}
			perNode[nodeID] = res.ByIP[ip]
		}

		splits := splitByteWeighted(perNode, mtDop)
		for _, split := range splits {
			addr, ok := splitHost(split)
			if !ok {
				continue
			}
			idx := len(out)
			inst := &vqtypes.FragmentInstance{
				FragmentID:            f.ID,
				InstanceID:            instanceID(f.ID, idx),
				InstanceIndex:         idx,
				Host:                  addr,
				PerNodeScanRanges:     make(map[int32][]vqtypes.ScanRange, len(split)),
				NumSendersPerExchange: map[int32]int32{},
			}
			for nodeID, assignmentsForNode := range split {
				ranges := make([]vqtypes.ScanRange, len(assignmentsForNode))
				for i, a := range assignmentsForNode {
					ranges[i] = a.Range
				}
				inst.PerNodeScanRanges[nodeID] = ranges
			}
			out = append(out, inst)
		}
	}
	return out, nil
}

// splitHost returns the backend address carried by split's assignments, and
// whether split has any assignment at all.
func splitHost(split map[int32][]scanassign.Assignment) (vqtypes.NetworkAddress, bool) {
	for _, as := range split {
		if len(as) > 0 {
			return as[0].Backend.Address, true
		}
	}
	return vqtypes.NetworkAddress{}, false
}

func (p *Planner) planUnion(
	f *vqtypes.Fragment,
	scanIDs []int32,
	assignments map[int32]*scanassign.Result,
	byID map[int32]*vqtypes.Fragment,
	instances map[int32][]*vqtypes.FragmentInstance,
	opts Options,
) ([]*vqtypes.FragmentInstance, error) {
	hostSet := make(map[string]vqtypes.NetworkAddress)

	for _, nodeID := range scanIDs {
		res, ok := assignments[nodeID]
		if !ok {
			return nil, schederrors.ErrMalformedPlan
		}
		for ip, as := range res.ByIP {
			if len(as) > 0 {
				hostSet[ip] = as[0].Backend.Address
			}
		}
	}

	if !(opts.ScanHostsOnly && len(scanIDs) > 0) {
		for _, inputID := range f.InputFragments {
			for _, inst := range instances[inputID] {
				hostSet[inst.Host.Host] = inst.Host
			}
		}
	}

	ips := make([]string, 0, len(hostSet))
	for ip := range hostSet {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	out := make([]*vqtypes.FragmentInstance, len(ips))
	for i, ip := range ips {
		inst := &vqtypes.FragmentInstance{
			FragmentID:            f.ID,
			InstanceID:            instanceID(f.ID, i),
			Host:                  hostSet[ip],
			InstanceIndex:         i,
			PerNodeScanRanges:     make(map[int32][]vqtypes.ScanRange),
			NumSendersPerExchange: map[int32]int32{},
		}
		for _, nodeID := range scanIDs {
			if res, ok := assignments[nodeID]; ok {
				if as, ok := res.ByIP[ip]; ok {
					ranges := make([]vqtypes.ScanRange, len(as))
					for j, a := range as {
						ranges[j] = a.Range
					}
					inst.PerNodeScanRanges[nodeID] = ranges
				}
			}
		}
		out[i] = inst
	}
	return out, nil
}

// wireExchanges assigns dense sender IDs to every producing fragment's
// instances and records, on every consuming instance, how many senders
// feed it (spec §4.6 "Exchange wiring").
func wireExchanges(
	fragments []*vqtypes.Fragment,
	byID map[int32]*vqtypes.Fragment,
	instances map[int32][]*vqtypes.FragmentInstance,
) map[int32][]vqtypes.ExchangeDestination {
	dests := make(map[int32][]vqtypes.ExchangeDestination)

	for _, f := range fragments {
		if f.OutputFragment < 0 {
			continue
		}
		consumer, ok := byID[f.OutputFragment]
		if !ok {
			continue
		}

		for idx, inst := range instances[f.ID] {
			inst.SenderID = int32(idx)
		}

		consumerInstances := instances[consumer.ID]
		for _, inst := range consumerInstances {
			inst.NumSendersPerExchange[f.ID] = int32(len(instances[f.ID]))
		}

		for _, inst := range consumerInstances {
			dests[f.ID] = append(dests[f.ID], vqtypes.ExchangeDestination{
				FragmentID:    consumer.ID,
				InstanceIndex: inst.InstanceIndex,
			})
		}
	}

	return dests
}

func instanceID(fragmentID int32, index int) string {
	return vqtypes.FragmentInstanceID(fragmentID, index)
}

// collectScans returns every SCAN node ID in the subtree rooted at n, in
// left-first DFS order.
func collectScans(n *vqtypes.PlanNode) []int32 {
	if n == nil {
		return nil
	}
	var out []int32
	if n.Kind == vqtypes.Scan {
		out = append(out, n.ID)
	}
	for _, c := range n.Children {
		out = append(out, collectScans(c)...)
	}
	return out
}

// leftmostScan returns the ID of the first SCAN node found by a left-first
// DFS that does not descend past EXCHANGE boundaries (spec §4.6
// "leftmost-scan heuristic"). Exchange nodes in this tree are leaves (they
// mark where another fragment's output plugs in), so the walk naturally
// stops there.
func leftmostScan(n *vqtypes.PlanNode) int32 {
	if n == nil {
		return -1
	}
	if n.Kind == vqtypes.Scan {
		return n.ID
	}
	for _, c := range n.Children {
		if id := leftmostScan(c); id >= 0 {
			return id
		}
	}
	return -1
}
