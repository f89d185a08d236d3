package vqtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveMinDistance(t *testing.T) {
	diskLocal := PreferDiskLocal
	remote := PreferRemote

	tests := []struct {
		name     string
		opts     QueryOptions
		hint     *ScanRangeHint
		expected MemoryDistance
	}{
		{
			name:     "default cache-local, no hint",
			opts:     QueryOptions{ReplicaPreference: PreferCacheLocal},
			hint:     nil,
			expected: CacheLocal,
		},
		{
			name:     "disable_cached_reads forces disk-local",
			opts:     QueryOptions{ReplicaPreference: PreferCacheLocal, DisableCachedReads: true},
			hint:     nil,
			expected: DiskLocal,
		},
		{
			name:     "disable_cached_reads never relaxes a stricter remote query preference",
			opts:     QueryOptions{ReplicaPreference: PreferRemote, DisableCachedReads: true},
			hint:     nil,
			expected: Remote,
		},
		{
			name:     "hint override stricter than query preference wins",
			opts:     QueryOptions{ReplicaPreference: PreferCacheLocal},
			hint:     &ScanRangeHint{ReplicaPreferenceOverride: &diskLocal},
			expected: DiskLocal,
		},
		{
			name:     "query preference stricter than hint wins",
			opts:     QueryOptions{ReplicaPreference: PreferRemote},
			hint:     &ScanRangeHint{ReplicaPreferenceOverride: &diskLocal},
			expected: Remote,
		},
		{
			name:     "hint present but nil override falls back to query preference",
			opts:     QueryOptions{ReplicaPreference: PreferCacheLocal},
			hint:     &ScanRangeHint{},
			expected: CacheLocal,
		},
		{
			name:     "remote hint with cache-local query preference",
			opts:     QueryOptions{ReplicaPreference: PreferCacheLocal},
			hint:     &ScanRangeHint{ReplicaPreferenceOverride: &remote},
			expected: Remote,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.opts.EffectiveMinDistance(tt.hint)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDefaultQueryOptions(t *testing.T) {
	opts := DefaultQueryOptions()
	assert.Equal(t, PreferCacheLocal, opts.ReplicaPreference)
	assert.Equal(t, 1, opts.MtDop)
	assert.False(t, opts.ScheduleRandomReplica)
	assert.False(t, opts.DisableCachedReads)
}
