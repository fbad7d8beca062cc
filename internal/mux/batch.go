package mux

// CoalesceInput merges a raw sequence of input events collected within one
// batching window (spec.md §6 input_batch_window_ms) into the minimal set
// that preserves user intent:
//   - consecutive pointer-motion events collapse to the last (only the
//     final cursor position in the window matters to the renderer)
//   - consecutive scroll events sum their Delta into one event
//   - key down/up and button events are never coalesced or reordered,
//     since dropping or merging a press/release changes observable
//     behavior (a client expecting one key_up per key_down)
//
// Relative order of the surviving events is preserved.
func CoalesceInput(events []InputEvent) []InputEvent {
	if len(events) == 0 {
		return events
	}

	out := make([]InputEvent, 0, len(events))
	for _, e := range events {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if e.isPointerMotion() && last.isPointerMotion() {
				*last = e
				continue
			}
			if e.isScroll() && last.isScroll() {
				last.Delta += e.Delta
				last.X, last.Y = e.X, e.Y
				continue
			}
		}
		out = append(out, e)
	}
	return out
}
