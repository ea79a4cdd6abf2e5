package segmenter

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/uroflow/internal/models"
)

var t0 = time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)

func at(sec int) time.Time {
	return t0.Add(time.Duration(sec) * time.Second)
}

func testConfig() Config {
	return Config{Window: 5 * time.Second, MinVolume: 50}
}

// ─── Gap-based segmentation ───

func TestProcessGapClosesAndReopens(t *testing.T) {
	s := New("dev-1", testConfig())

	out := s.Process(at(0), 100)
	assert.True(t, out.Detected)
	assert.Equal(t, models.TransitionStarted, out.Transition)
	assert.Equal(t, StateOpen, s.State())

	out = s.Process(at(3), 80)
	assert.Equal(t, models.TransitionContinuing, out.Transition)
	require.NotNil(t, out.Open)
	assert.InDelta(t, 180, out.Open.TotalVolume, 1e-9)
	assert.Nil(t, out.Completed)

	out = s.Process(at(10), 60)
	assert.True(t, out.Detected)
	assert.Equal(t, models.TransitionCompleted, out.Transition)

	require.NotNil(t, out.Completed)
	done := out.Completed
	assert.InDelta(t, 180, done.TotalVolume, 1e-9)
	assert.InDelta(t, 3, done.Duration, 1e-9)
	assert.InDelta(t, 60, done.AverageFlowRate, 1e-9)
	assert.True(t, done.StartTime.Equal(at(0)))
	require.NotNil(t, done.EndTime)
	assert.True(t, done.EndTime.Equal(at(3)))
	assert.Len(t, done.FlowSamples, 2)
	assert.InDelta(t, 100, done.PeakSample, 1e-9)

	require.NotNil(t, out.Open)
	assert.InDelta(t, 60, out.Open.TotalVolume, 1e-9)
	assert.True(t, out.Open.StartTime.Equal(at(10)))
	assert.NotEqual(t, done.ID, out.Open.ID)
}

func TestProcessGapMeasuredFromPreviousSample(t *testing.T) {
	s := New("dev-1", testConfig())

	// Each sample is 4s after the previous one; the event runs well past the
	// window measured from its start and must stay open.
	for i := 0; i <= 5; i++ {
		out := s.Process(at(i*4), 60)
		require.Nil(t, out.Completed, "sample %d closed the event", i)
	}
	cur := s.Current()
	require.NotNil(t, cur)
	assert.InDelta(t, 360, cur.TotalVolume, 1e-9)
	assert.True(t, cur.StartTime.Equal(at(0)))
}

func TestProcessGapExactlyWindowContinues(t *testing.T) {
	s := New("dev-1", testConfig())
	s.Process(at(0), 100)
	out := s.Process(at(5), 100)
	assert.Equal(t, models.TransitionContinuing, out.Transition)
}

// ─── Threshold filtering ───

func TestProcessBelowMinimumIsNoOp(t *testing.T) {
	s := New("dev-1", testConfig())

	out := s.Process(at(0), 10)
	assert.False(t, out.Detected)
	assert.Equal(t, models.TransitionIgnored, out.Transition)
	assert.Equal(t, ReasonBelowMinimum, out.Reason)
	assert.Equal(t, StateIdle, s.State())

	s.Process(at(1), 100)
	out = s.Process(at(2), 10)
	assert.False(t, out.Detected)
	require.NotNil(t, out.Open)
	assert.InDelta(t, 100, out.Open.TotalVolume, 1e-9)

	// A sub-threshold sample does not refresh the gap reference.
	out = s.Process(at(7), 60)
	assert.Equal(t, models.TransitionCompleted, out.Transition)
	require.NotNil(t, out.Completed)
	assert.InDelta(t, 100, out.Completed.TotalVolume, 1e-9)
}

func TestProcessAboveMaximumIsIgnored(t *testing.T) {
	s := New("dev-1", Config{Window: 5 * time.Second, MinVolume: 50, MaxVolume: 800})
	out := s.Process(at(0), 900)
	assert.False(t, out.Detected)
	assert.Equal(t, ReasonAboveMaximum, out.Reason)
	assert.Equal(t, StateIdle, s.State())
}

func TestProcessOutOfOrderIsIgnored(t *testing.T) {
	s := New("dev-1", testConfig())
	s.Process(at(10), 100)
	out := s.Process(at(8), 100)
	assert.False(t, out.Detected)
	assert.Equal(t, ReasonOutOfOrder, out.Reason)
	assert.InDelta(t, 100, s.Current().TotalVolume, 1e-9)
}

// ─── Flush ───

func TestFlushSingleSampleEvent(t *testing.T) {
	s := New("dev-1", testConfig())
	assert.Nil(t, s.Flush())

	s.Process(at(0), 120)
	e := s.Flush()
	require.NotNil(t, e)
	assert.InDelta(t, 0, e.Duration, 1e-9)
	assert.InDelta(t, 0, e.AverageFlowRate, 1e-9)
	assert.False(t, e.IsOpen())
	assert.Equal(t, StateIdle, s.State())
}

func TestClosedEventIsIsolatedFromSegmenter(t *testing.T) {
	s := New("dev-1", testConfig())
	s.Process(at(0), 100)
	out := s.Process(at(1), 100)
	out.Open.TotalVolume = 0
	out.Open.FlowSamples[0].Volume = 0

	cur := s.Current()
	assert.InDelta(t, 200, cur.TotalVolume, 1e-9)
	assert.InDelta(t, 100, cur.FlowSamples[0].Volume, 1e-9)
}

func TestEventIDIsStable(t *testing.T) {
	assert.Equal(t, EventID("dev-1", at(0)), EventID("dev-1", at(0)))
	assert.NotEqual(t, EventID("dev-1", at(0)), EventID("dev-2", at(0)))
	assert.NotEqual(t, EventID("dev-1", at(0)), EventID("dev-1", at(1)))
}

// ─── Registry ───

func TestRegistryIsolatesDevices(t *testing.T) {
	r := NewRegistry(testConfig())
	r.Process("a", at(0), at(0), 100)
	r.Process("b", at(0), at(0), 70)
	r.Process("a", at(2), at(2), 100)

	require.NotNil(t, r.Current("a"))
	assert.InDelta(t, 200, r.Current("a").TotalVolume, 1e-9)
	assert.InDelta(t, 70, r.Current("b").TotalVolume, 1e-9)
	assert.Nil(t, r.Current("missing"))
	assert.Equal(t, []string{"a", "b"}, r.Devices())
}

func TestRegistryFlushIdle(t *testing.T) {
	r := NewRegistry(testConfig())
	r.Process("a", at(0), at(0), 120)
	r.Process("a", at(2), at(2), 80)
	r.Process("b", at(8), at(8), 100)

	assert.Empty(t, r.FlushIdle(at(7)))
	closed := r.FlushIdle(at(10))
	require.Len(t, closed, 1)
	assert.Equal(t, "a", closed[0].DeviceID)
	assert.InDelta(t, 200, closed[0].TotalVolume, 1e-9)
	assert.InDelta(t, 2, closed[0].Duration, 1e-9)
	assert.NotNil(t, r.Current("b"))
	assert.Nil(t, r.Flush("missing"))
}

func TestRegistryFlushIdleUsesReceiptTime(t *testing.T) {
	r := NewRegistry(testConfig())
	server := at(3600) // device clock is an hour behind

	r.Process("a", at(0), server, 100)
	assert.Empty(t, r.FlushIdle(server.Add(time.Second)))

	out := r.Process("a", at(2), server.Add(2*time.Second), 80)
	assert.Equal(t, models.TransitionContinuing, out.Transition)

	// Ignored samples do not keep the event alive.
	r.Process("a", at(3), server.Add(5*time.Second), 10)
	closed := r.FlushIdle(server.Add(8 * time.Second))
	require.Len(t, closed, 1)
	assert.InDelta(t, 180, closed[0].TotalVolume, 1e-9)
	assert.True(t, closed[0].EndTime.Equal(at(2)))
}

func TestRegistryConcurrentDevices(t *testing.T) {
	r := NewRegistry(testConfig())
	var wg sync.WaitGroup
	for d := 0; d < 8; d++ {
		wg.Add(1)
		go func(d int) {
			defer wg.Done()
			id := fmt.Sprintf("dev-%d", d)
			for i := 0; i < 50; i++ {
				r.Process(id, at(i), at(i), 60)
			}
		}(d)
	}
	wg.Wait()

	for d := 0; d < 8; d++ {
		cur := r.Current(fmt.Sprintf("dev-%d", d))
		require.NotNil(t, cur)
		assert.InDelta(t, 3000, cur.TotalVolume, 1e-9)
	}
}
