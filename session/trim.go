package session

import "github.com/cliproom/cliproom/services/processor"

// Window is a snapshot of the trim selection, in seconds.
type Window struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// TrimWindow tracks the cut the user selected on the loaded clip's timeline.
// The duration is only learned when the presentation layer reports the
// clip's metadata; until then every setter is a no-op. Once the duration is
// known the window keeps 0 <= start < end <= duration at all times.
type TrimWindow struct {
	start    float64
	end      float64
	duration float64
}

// SetDuration establishes the timeline and opens the window to the full
// clip. Non-positive durations leave the window uninitialized.
func (w *TrimWindow) SetDuration(d float64) Window {
	if d <= 0 {
		w.Reset()
		return w.Window()
	}
	w.duration = d
	w.start = 0
	w.end = d
	return w.Window()
}

// SetStart moves the start bound. A start pushed onto or past the end bound
// shoves the end forward to keep a window open; when the end is already
// saturated at the duration the start yields instead. The window never
// collapses.
func (w *TrimWindow) SetStart(v float64) Window {
	if !w.Initialized() {
		return w.Window()
	}
	v = clamp(v, 0, w.duration)
	if v >= w.end {
		w.end = min(v+1, w.duration)
		if v >= w.end {
			v = max(w.end-1, 0)
		}
	}
	w.start = v
	return w.Window()
}

// SetEnd mirrors SetStart for the end bound.
func (w *TrimWindow) SetEnd(v float64) Window {
	if !w.Initialized() {
		return w.Window()
	}
	v = clamp(v, 0, w.duration)
	if v <= w.start {
		w.start = max(v-1, 0)
		if v <= w.start {
			v = min(w.start+1, w.duration)
		}
	}
	w.end = v
	return w.Window()
}

// Initialized reports whether the clip's duration is known yet.
func (w *TrimWindow) Initialized() bool {
	return w.duration > 0
}

func (w *TrimWindow) Reset() {
	*w = TrimWindow{}
}

func (w *TrimWindow) Window() Window {
	return Window{
		Start:    w.start,
		End:      w.end,
		Duration: w.duration,
	}
}

// Bounds is the window as the processing service wants it.
func (w *TrimWindow) Bounds() processor.Bounds {
	return processor.Bounds{Start: w.start, End: w.end}
}

// NarrowedBounds returns the window only when it actually cuts something,
// nil when it is unset or spans the whole clip.
func (w *TrimWindow) NarrowedBounds() *processor.Bounds {
	if !w.Initialized() || (w.start == 0 && w.end == w.duration) {
		return nil
	}
	bounds := w.Bounds()
	return &bounds
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
