// Package session wires the gfx, mux, and clipboard packages into one
// running engine: three cooperating executors (frame pipeline, transport,
// clipboard I/O worker pool) sharing a monotonic clock and a single
// cancellation token, grounded on the teacher's Session/SessionManager
// (remote/desktop/session.go, session_webrtc.go, session_control.go)
// generalized from a WebRTC-specific desktop-sharing session to this
// core's transport-agnostic engine (spec.md §5, §9).
package session

import (
	"github.com/breeze-rmm/rdpgfx/internal/clipboard"
	"github.com/breeze-rmm/rdpgfx/internal/gfx"
	"github.com/breeze-rmm/rdpgfx/internal/mux"
)

// InputSource is the external collaborator that yields typed input events
// already translated into framebuffer space (spec.md §6 "Inbound").
type InputSource interface {
	Next() (mux.InputEvent, error)
	Close() error
}

// Transport is the outbound surface this core drives; the RDP wire
// transport itself is out of scope (spec.md §1), so this is the narrow set
// of sends the engine needs a collaborator to perform (spec.md §6
// "Outbound").
type Transport interface {
	SendGraphics(frame []byte) error
	SendInputAck(seqNo uint64) error
	SendControl(msg []byte) error
	SendClipboardPDU(pdu []byte) error
}

// ClipboardCollaborators bundles the pieces the clipboard glue needs: the
// core OSClipboard read/write surface and, optionally, a source for serving
// local files to the peer.
type ClipboardCollaborators struct {
	OS         clipboard.OSClipboard
	FileSource clipboard.LocalFileSource // nil if this session never serves local files
}
