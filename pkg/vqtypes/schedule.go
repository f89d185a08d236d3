package vqtypes

// ScheduleCounters are the byte/assignment counters attached to a
// QuerySchedule, used to verify spec §8 properties 3-5 and to feed the
// scheduler.* gauges.
type ScheduleCounters struct {
	TotalAssignments  int64
	LocalAssignments  int64
	RemoteAssignments int64

	CachedBytes    int64
	DiskLocalBytes int64
	RemoteBytes    int64
}

// Add merges another counter set into this one.
func (c *ScheduleCounters) Add(o ScheduleCounters) {
	c.TotalAssignments += o.TotalAssignments
	c.LocalAssignments += o.LocalAssignments
	c.RemoteAssignments += o.RemoteAssignments
	c.CachedBytes += o.CachedBytes
	c.DiskLocalBytes += o.DiskLocalBytes
	c.RemoteBytes += o.RemoteBytes
}

// QuerySchedule is the output of Scheduler.Schedule: every fragment
// instance to launch, the exchange wiring between them, and the
// coordinator address.
type QuerySchedule struct {
	QueryID string

	// FragmentInstances holds every instance of every fragment, keyed by
	// fragment id; within a fragment, instances are ordered by
	// InstanceIndex.
	FragmentInstances map[int32][]*FragmentInstance

	// ExchangeDestinations maps a producing fragment's id to the list of
	// consumer instances its instances must send to.
	ExchangeDestinations map[int32][]ExchangeDestination

	CoordAddress NetworkAddress
	Counters     ScheduleCounters
}
