package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/vectorsql/vectorsql/pkg/vqtypes"
)

// fixture is the YAML shape accepted by the `run` subcommand: a static
// backend roster plus a single query request to schedule against it. It
// mirrors the teacher's apply.go pattern of decoding a flat YAML document
// into a typed resource before acting on it.
type fixture struct {
	Backends []fixtureBackend `yaml:"backends"`
	Query    fixtureQuery     `yaml:"query"`
}

type fixtureBackend struct {
	Key         string `yaml:"key"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Hostname    string `yaml:"hostname"`
	Executor    bool   `yaml:"executor"`
	Coordinator bool   `yaml:"coordinator"`
}

type fixtureQuery struct {
	QueryID      string         `yaml:"query_id"`
	CoordAddress fixtureAddress `yaml:"coord_address"`
	Options      fixtureOptions `yaml:"options"`
	Plans        []fixturePlan  `yaml:"plans"`
}

type fixtureAddress struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (a fixtureAddress) toNetworkAddress() vqtypes.NetworkAddress {
	return vqtypes.NetworkAddress{Host: a.Host, Port: a.Port}
}

type fixtureOptions struct {
	ReplicaPreference     string `yaml:"replica_preference"`
	ScheduleRandomReplica bool   `yaml:"schedule_random_replica"`
	DisableCachedReads    bool   `yaml:"disable_cached_reads"`
	MtDop                 int    `yaml:"mt_dop"`
	RequestPool           string `yaml:"request_pool"`
	RandSeed              int64  `yaml:"rand_seed"`
	ScanHostsOnly         bool   `yaml:"scan_hosts_only"`
}

func (o fixtureOptions) toQueryOptions() (vqtypes.QueryOptions, error) {
	opts := vqtypes.DefaultQueryOptions()
	if o.ReplicaPreference != "" {
		pref, err := parseReplicaPreference(o.ReplicaPreference)
		if err != nil {
			return opts, err
		}
		opts.ReplicaPreference = pref
	}
	opts.ScheduleRandomReplica = o.ScheduleRandomReplica
	opts.DisableCachedReads = o.DisableCachedReads
	if o.MtDop > 0 {
		opts.MtDop = o.MtDop
	}
	opts.RequestPool = o.RequestPool
	opts.RandSeed = o.RandSeed
	opts.ScanHostsOnly = o.ScanHostsOnly
	return opts, nil
}

func parseReplicaPreference(s string) (vqtypes.ReplicaPreference, error) {
	switch s {
	case "CACHE_LOCAL":
		return vqtypes.PreferCacheLocal, nil
	case "DISK_LOCAL":
		return vqtypes.PreferDiskLocal, nil
	case "REMOTE":
		return vqtypes.PreferRemote, nil
	default:
		return 0, fmt.Errorf("unknown replica_preference %q", s)
	}
}

type fixturePlan struct {
	HostList          []fixtureAddress              `yaml:"host_list"`
	Fragments         []fixtureFragment             `yaml:"fragments"`
	PerNodeScanRanges map[int32][]fixtureScanRange   `yaml:"per_node_scan_ranges"`
	PerNodeHints      map[int32]fixtureScanRangeHint `yaml:"per_node_hints"`
}

type fixtureFragment struct {
	ID             int32           `yaml:"id"`
	DataPartition  string          `yaml:"data_partition"`
	InputFragments []int32         `yaml:"input_fragments"`
	OutputFragment int32           `yaml:"output_fragment"`
	PlanRoot       fixturePlanNode `yaml:"plan_root"`
}

type fixturePlanNode struct {
	ID                int32             `yaml:"id"`
	Kind              string            `yaml:"kind"`
	Children          []fixturePlanNode `yaml:"children"`
	InputFragmentID   int32             `yaml:"input_fragment_id"`
	ExchangePartition string            `yaml:"exchange_partition"`
}

func (n fixturePlanNode) toPlanNode() *vqtypes.PlanNode {
	children := make([]*vqtypes.PlanNode, len(n.Children))
	for i, c := range n.Children {
		children[i] = c.toPlanNode()
	}
	return &vqtypes.PlanNode{
		ID:                n.ID,
		Kind:              vqtypes.PlanNodeKind(n.Kind),
		Children:          children,
		InputFragmentID:   n.InputFragmentID,
		ExchangePartition: vqtypes.DataPartitionType(n.ExchangePartition),
	}
}

type fixtureScanRange struct {
	LengthBytes int64                    `yaml:"length_bytes"`
	Locations   []fixtureReplicaLocation `yaml:"locations"`
}

type fixtureReplicaLocation struct {
	HostIdx  int  `yaml:"host_idx"`
	IsCached bool `yaml:"is_cached"`
}

type fixtureScanRangeHint struct {
	ReplicaPreferenceOverride string `yaml:"replica_preference_override"`
	ExecAtCoord               bool   `yaml:"exec_at_coord"`
}

func (b fixtureBackend) toBackendDescriptor() *vqtypes.BackendDescriptor {
	return &vqtypes.BackendDescriptor{
		Address:       vqtypes.NetworkAddress{Host: b.Host, Port: b.Port},
		IP:            b.Host,
		Hostname:      b.Hostname,
		IsCoordinator: b.Coordinator,
		IsExecutor:    b.Executor,
	}
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &f, nil
}

// toRequest converts the decoded fixture into a scheduler request.
func (f *fixture) toRequest() (*vqtypes.QueryExecRequest, error) {
	opts, err := f.Query.Options.toQueryOptions()
	if err != nil {
		return nil, err
	}

	queryID := f.Query.QueryID
	if queryID == "" {
		queryID = uuid.NewString()
	}

	req := &vqtypes.QueryExecRequest{
		QueryID:      queryID,
		Options:      opts,
		CoordAddress: f.Query.CoordAddress.toNetworkAddress(),
	}

	for _, p := range f.Query.Plans {
		plan := &vqtypes.PlanExecInfo{
			PerNodeScanRanges: make(map[int32][]vqtypes.ScanRange),
			PerNodeHints:      make(map[int32]vqtypes.ScanRangeHint),
		}
		for _, a := range p.HostList {
			plan.HostList = append(plan.HostList, a.toNetworkAddress())
		}
		for _, ff := range p.Fragments {
			plan.Fragments = append(plan.Fragments, &vqtypes.Fragment{
				ID:             ff.ID,
				PlanRoot:       ff.PlanRoot.toPlanNode(),
				DataPartition:  vqtypes.DataPartitionType(ff.DataPartition),
				InputFragments: ff.InputFragments,
				OutputFragment: ff.OutputFragment,
			})
		}
		for nodeID, ranges := range p.PerNodeScanRanges {
			for _, r := range ranges {
				locations := make([]vqtypes.ReplicaLocation, len(r.Locations))
				for i, loc := range r.Locations {
					locations[i] = vqtypes.ReplicaLocation{HostIdx: loc.HostIdx, IsCached: loc.IsCached}
				}
				plan.PerNodeScanRanges[nodeID] = append(plan.PerNodeScanRanges[nodeID], vqtypes.ScanRange{
					LengthBytes: r.LengthBytes,
					Locations:   locations,
				})
			}
		}
		for nodeID, h := range p.PerNodeHints {
			hint := vqtypes.ScanRangeHint{ExecAtCoord: h.ExecAtCoord}
			if h.ReplicaPreferenceOverride != "" {
				pref, err := parseReplicaPreference(h.ReplicaPreferenceOverride)
				if err != nil {
					return nil, err
				}
				hint.ReplicaPreferenceOverride = &pref
			}
			plan.PerNodeHints[nodeID] = hint
		}
		req.Plans = append(req.Plans, plan)
	}

	return req, nil
}
