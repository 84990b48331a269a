package model

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataset_Recount(t *testing.T) {
	ds := &Dataset{Examples: []TrainingExample{
		{Text: "hi", Intent: "greet"},
		{Text: "hello", Intent: "greet"},
		{Text: "bye", Intent: "goodbye"},
	}}
	ds.Recount()

	assert.Equal(t, 3, ds.TotalSamples)
	assert.Equal(t, StringList{"goodbye", "greet"}, ds.UniqueIntents)
	assert.Equal(t, IntentCounts{"greet": 2, "goodbye": 1}, ds.IntentCounts)
	assert.True(t, ds.HasExample("hi", "greet"))
	assert.False(t, ds.HasExample("hi", "goodbye"))
}

func TestPriorityForUncertainty(t *testing.T) {
	tests := []struct {
		u    float64
		want SamplePriority
	}{
		{0.9, PriorityUrgent},
		{0.81, PriorityUrgent},
		{0.8, PriorityHigh},
		{0.61, PriorityHigh},
		{0.6, PriorityMedium},
		{0.3, PriorityMedium},
		{0.29, PriorityLow},
		{0, PriorityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriorityForUncertainty(tt.u), "uncertainty %v", tt.u)
	}
}

func TestQueueLess(t *testing.T) {
	now := time.Now()
	samples := []*ActiveLearningSample{
		{ID: "low", Priority: PriorityLow, UncertaintyScore: 0.99, CreatedAt: now},
		{ID: "urgent-old", Priority: PriorityUrgent, UncertaintyScore: 0.85, CreatedAt: now.Add(-time.Hour)},
		{ID: "urgent-new", Priority: PriorityUrgent, UncertaintyScore: 0.85, CreatedAt: now},
		{ID: "urgent-max", Priority: PriorityUrgent, UncertaintyScore: 0.9, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "medium", Priority: PriorityMedium, UncertaintyScore: 0.5, CreatedAt: now},
	}
	sort.SliceStable(samples, func(i, j int) bool { return QueueLess(samples[i], samples[j]) })

	ids := make([]string, len(samples))
	for i, s := range samples {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"urgent-max", "urgent-new", "urgent-old", "medium", "low"}, ids)
}

func TestJSONColumns_RoundTripThroughScan(t *testing.T) {
	v, err := StringList{"a", "b"}.Value()
	require.NoError(t, err)

	var got StringList
	require.NoError(t, got.Scan([]byte(v.(string))))
	assert.Equal(t, StringList{"a", "b"}, got)

	var counts IntentCounts
	require.NoError(t, counts.Scan(`{"greet":2}`))
	assert.Equal(t, 2, counts["greet"])

	assert.Error(t, counts.Scan(42))
	assert.NoError(t, counts.Scan(nil))
}

func TestActor_CanAccess(t *testing.T) {
	assert.True(t, Actor{UserID: "u1", Role: RoleUser}.CanAccess("u1"))
	assert.False(t, Actor{UserID: "u1", Role: RoleUser}.CanAccess("u2"))
	assert.True(t, Actor{UserID: "a", Role: RoleAdmin}.CanAccess("u2"))
	assert.False(t, Actor{}.CanAccess(""))
}
