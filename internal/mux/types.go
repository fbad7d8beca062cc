// Package mux implements the priority event multiplexer: four bounded
// queues (input, control, clipboard, graphics) drained in priority order
// each tick, each with its own overflow policy so a slow consumer degrades
// gracefully instead of one channel starving the others.
package mux

import "github.com/breeze-rmm/rdpgfx/internal/gfx"

// InputEvent mirrors the shape a viewer's input channel delivers, grounded
// on the teacher's InputEvent (remote/desktop/input.go) but widened with a
// SeqNo that PushInput assigns and the transport echoes in its input acks.
type InputEvent struct {
	SeqNo     uint64
	Type      string // "mouse_move", "mouse_down", "mouse_up", "scroll", "key_down", "key_up"
	X, Y      int
	Button    string
	Key       string
	Modifiers []string
	Delta     int
}

func (e InputEvent) isPointerMotion() bool { return e.Type == "mouse_move" }
func (e InputEvent) isScroll() bool        { return e.Type == "scroll" }

// ControlMessage is a session-tuning command from the viewer's control
// channel (spec.md §6, grounded on the teacher's handleControlMessage
// type/value JSON shape in session_control.go).
type ControlMessage struct {
	Type  string
	Value int
}

// ClipboardMessage is an opaque envelope handed to the clipboard package;
// mux only needs enough of its shape to decide replace-head coalescing.
type ClipboardMessage struct {
	Kind    string // "format_list", "data_request", "data_response", "file_contents_request", ...
	Payload []byte
}

// isFileChunkKind reports whether a clipboard message carries an in-progress
// file transfer chunk, which spec.md §4.5's clipboard overflow policy
// exempts from both same-Kind coalescing (it would let a chunk for one
// stream/offset silently replace one for another) and drop-oldest eviction.
func (c ClipboardMessage) isFileChunkKind() bool {
	return c.Kind == "file_contents_request" || c.Kind == "file_contents_response"
}

// GraphicsItem wraps one encoded frame for the graphics queue.
type GraphicsItem struct {
	Frame gfx.Avc444Frame
}
