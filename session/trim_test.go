package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliproom/cliproom/services/processor"
)

func TestSetDurationOpensFullWindow(t *testing.T) {
	var w TrimWindow
	got := w.SetDuration(10)
	assert.Equal(t, Window{Start: 0, End: 10, Duration: 10}, got)
	assert.True(t, w.Initialized())
}

func TestSettersBeforeDurationAreNoOps(t *testing.T) {
	var w TrimWindow
	assert.Equal(t, Window{}, w.SetStart(3))
	assert.Equal(t, Window{}, w.SetEnd(5))
	assert.False(t, w.Initialized())
}

func TestNonPositiveDurationStaysUninitialized(t *testing.T) {
	var w TrimWindow
	w.SetDuration(10)
	got := w.SetDuration(0)
	assert.Equal(t, Window{}, got)
	assert.False(t, w.Initialized())
}

func TestSetStartPushesEndForward(t *testing.T) {
	var w TrimWindow
	w.SetDuration(10)
	w.SetStart(2)
	w.SetEnd(4)

	got := w.SetStart(6)
	assert.Equal(t, Window{Start: 6, End: 7, Duration: 10}, got)
}

func TestSetEndPullsStartBack(t *testing.T) {
	var w TrimWindow
	w.SetDuration(10)
	w.SetStart(5)

	got := w.SetEnd(3)
	assert.Equal(t, Window{Start: 2, End: 3, Duration: 10}, got)
}

func TestStartYieldsWhenEndSaturates(t *testing.T) {
	var w TrimWindow
	w.SetDuration(0.5)

	got := w.SetStart(0.5)
	assert.Equal(t, Window{Start: 0, End: 0.5, Duration: 0.5}, got)
}

func TestEndYieldsWhenStartSaturates(t *testing.T) {
	var w TrimWindow
	w.SetDuration(0.5)

	got := w.SetEnd(0)
	assert.Equal(t, Window{Start: 0, End: 0.5, Duration: 0.5}, got)
}

func TestBoundsAreClamped(t *testing.T) {
	var w TrimWindow
	w.SetDuration(10)
	assert.Equal(t, Window{Start: 0, End: 10, Duration: 10}, w.SetStart(-3))
	assert.Equal(t, Window{Start: 0, End: 10, Duration: 10}, w.SetEnd(42))
}

func TestWindowNeverCollapses(t *testing.T) {
	var w TrimWindow
	w.SetDuration(7.3)
	for _, v := range []float64{0, 7.3, 3.6, -1, 9, 7.2, 0.1, 6.9} {
		got := w.SetStart(v)
		assert.Less(t, got.Start, got.End, "SetStart(%v)", v)
		assert.GreaterOrEqual(t, got.Start, 0.0)
		assert.LessOrEqual(t, got.End, 7.3)

		got = w.SetEnd(7.3 - v)
		assert.Less(t, got.Start, got.End, "SetEnd(%v)", 7.3-v)
		assert.GreaterOrEqual(t, got.Start, 0.0)
		assert.LessOrEqual(t, got.End, 7.3)
	}
}

func TestNarrowedBounds(t *testing.T) {
	var w TrimWindow
	assert.Nil(t, w.NarrowedBounds())

	w.SetDuration(10)
	assert.Nil(t, w.NarrowedBounds())

	w.SetStart(2)
	bounds := w.NarrowedBounds()
	require.NotNil(t, bounds)
	assert.Equal(t, processor.Bounds{Start: 2, End: 10}, *bounds)
}
