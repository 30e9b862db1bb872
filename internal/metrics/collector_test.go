package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorSnapshot(t *testing.T) {
	c := NewCollector()

	snap := c.Snapshot()
	assert.Nil(t, snap.Convert)
	assert.Nil(t, snap.Synthesize)

	c.RecordTiming(OpConvert, 10*time.Millisecond)
	c.RecordTiming(OpConvert, 30*time.Millisecond)
	c.RecordFailure(OpConvert, 20*time.Millisecond)
	c.RecordTiming(OpSynthesize, time.Millisecond)

	snap = c.Snapshot()
	require.NotNil(t, snap.Convert)
	assert.Equal(t, int64(3), snap.Convert.Count)
	assert.Equal(t, int64(1), snap.Convert.Failures)
	assert.Equal(t, int64(60), snap.Convert.TotalTimeMs)
	assert.Equal(t, int64(10), snap.Convert.MinTimeMs)
	assert.Equal(t, int64(30), snap.Convert.MaxTimeMs)
	assert.InDelta(t, 20.0, snap.Convert.AvgTimeMs, 0.001)

	require.NotNil(t, snap.Synthesize)
	assert.Equal(t, int64(1), snap.Synthesize.Count)
	assert.Nil(t, snap.Materialize)
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpMaterialize, time.Millisecond)
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	require.NotNil(t, snap.Materialize)
	assert.Equal(t, int64(50), snap.Materialize.Count)
}
