// Package topicfeed defines the wire shape of the cluster-membership topic
// (spec §6 "Membership feed"): an append-only stream of full-map or
// incremental deltas, each entry carrying an opaque serialized payload so
// the producer (pkg/statestore) and consumer (pkg/membership) don't need to
// share a type beyond this envelope.
package topicfeed

// Entry is one membership update: either an upsert (Payload set, Tombstone
// false) or a removal (Tombstone true, Payload nil). Key identifies the
// backend registration, independent of address — two keys may register the
// same IP and port over time (e.g. a process restart), which the consumer
// resolves with last-writer-wins.
type Entry struct {
	Key       string
	Payload   []byte
	Tombstone bool
}

// Delta is one message on the topic. A full map replaces the subscriber's
// entire known set (sent on initial registration or resync); an
// incremental delta is applied on top of the current set.
type Delta struct {
	FullMap bool
	Entries []Entry
}
