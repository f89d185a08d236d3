package assign

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vectorsql/vectorsql/pkg/rng"
	"github.com/vectorsql/vectorsql/pkg/vqtypes"
)

func executors(ips ...string) []*vqtypes.BackendDescriptor {
	out := make([]*vqtypes.BackendDescriptor, len(ips))
	for i, ip := range ips {
		out[i] = &vqtypes.BackendDescriptor{
			Address:    vqtypes.NetworkAddress{Host: ip, Port: 22000},
			IP:         ip,
			IsExecutor: true,
		}
	}
	return out
}

func TestContextSelectRemoteExhaustsUnusedCursorFirst(t *testing.T) {
	ctx := NewContext(executors("A", "B"), rng.New(1))

	seen := make(map[string]bool)
	ip1, ok := ctx.SelectRemote()
	assert.True(t, ok)
	seen[ip1] = true

	ip2, ok := ctx.SelectRemote()
	assert.True(t, ok)
	seen[ip2] = true

	assert.Len(t, seen, 2, "both backends used before falling back to the heap")

	ip3, ok := ctx.SelectRemote()
	assert.True(t, ok)
	assert.Contains(t, []string{"A", "B"}, ip3)
}

func TestContextRecordUpdatesCountersAndHeap(t *testing.T) {
	ctx := NewContext(executors("A", "B"), rng.New(1))

	ctx.Record("A", 1024, vqtypes.CacheLocal)
	ctx.Record("A", 2048, vqtypes.DiskLocal)
	ctx.Record("B", 4096, vqtypes.Remote)

	counters := ctx.Counters()
	assert.Equal(t, int64(1024), counters.CachedBytes)
	assert.Equal(t, int64(2048), counters.DiskLocalBytes)
	assert.Equal(t, int64(4096), counters.RemoteBytes)

	assert.Equal(t, int64(3072), ctx.AssignedBytes("A"))
	assert.Equal(t, int64(4096), ctx.AssignedBytes("B"))
}

// TestContextRecordZeroLengthStillAdvancesHeap covers the spec §4.5 edge
// case: a backend fed only zero-length ranges must still lose Top() to a
// backend that hasn't been touched at all, instead of starving it forever.
func TestContextRecordZeroLengthStillAdvancesHeap(t *testing.T) {
	ctx := NewContext(executors("A", "B"), rng.New(1))

	for i := 0; i < 5; i++ {
		ctx.Record("A", 0, vqtypes.DiskLocal)
	}

	top, ok := ctx.heap.Top()
	assert.True(t, ok)
	assert.Equal(t, "B", top, "A kept winning Top() on zero-length ranges would starve B")
	assert.Equal(t, int64(0), ctx.AssignedBytes("A"), "byte counters still reflect the real zero length")
}

func TestContextPickPortOnRoundRobins(t *testing.T) {
	descs := []*vqtypes.BackendDescriptor{
		{Address: vqtypes.NetworkAddress{Host: "A", Port: 1}, IP: "A", IsExecutor: true},
		{Address: vqtypes.NetworkAddress{Host: "A", Port: 2}, IP: "A", IsExecutor: true},
	}
	ctx := NewContext(descs, rng.New(1))

	first := ctx.PickPortOn("A")
	second := ctx.PickPortOn("A")
	third := ctx.PickPortOn("A")

	assert.NotEqual(t, first.Address.Port, second.Address.Port)
	assert.Equal(t, first.Address.Port, third.Address.Port, "cursor wraps after two ports")
}

func TestContextSelectLocalRespectsTieBreakMode(t *testing.T) {
	ctx := NewContext(executors("A", "B"), rng.New(42))

	ip, ok := ctx.SelectLocal([]string{"A", "B"}, false)
	assert.True(t, ok)
	assert.Equal(t, "A", ip, "equal load, input order preserved when not breaking ties by rank")
}

func TestContextDeterministicForSameSeed(t *testing.T) {
	ctx1 := NewContext(executors("A", "B", "C"), rng.New(7))
	ctx2 := NewContext(executors("A", "B", "C"), rng.New(7))

	ip1, _ := ctx1.SelectRemote()
	ip2, _ := ctx2.SelectRemote()
	assert.Equal(t, ip1, ip2, "identical seed produces identical permutation")
}
