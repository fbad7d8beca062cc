package session

import (
	"encoding/json"

	"github.com/breeze-rmm/rdpgfx/internal/logging"
	"github.com/breeze-rmm/rdpgfx/internal/mux"
)

var controlLog = logging.L("session.control")

// maxBitrateCap bounds a viewer-requested bitrate the way the teacher's
// handleControlMessage does (session_control.go "20 Mbps hard cap"),
// narrowed to this engine's kbps unit.
const maxBitrateCap = 20_000

// handleControl applies one drained control message (spec.md §6 "Outbound
// ... send_control", generalized from the teacher's type/value JSON
// session_control.go shape to this core's transport-agnostic
// mux.ControlMessage).
func (e *Engine) handleControl(msg mux.ControlMessage) {
	switch msg.Type {
	case "set_bitrate":
		if msg.Value <= 0 || msg.Value > maxBitrateCap {
			return
		}
		if e.adaptive != nil {
			e.adaptive.SetMaxBitrate(msg.Value)
		} else if err := e.encoder.SetBitrate(msg.Value); err != nil {
			controlLog.Warn("failed to set bitrate", "bitrateKbps", msg.Value, "error", err)
		}

	case "set_fps":
		if msg.Value <= 0 || msg.Value > 240 {
			return
		}
		e.dispatcher.SetRate(msg.Value)

	case "request_keyframe":
		// Explicit refresh request from the control channel (spec.md §4.3);
		// deferred to the pipeline's next iteration via the click-flush
		// gate rather than called directly, since the encoder is exclusively
		// owned by the frame pipeline executor (spec.md §5).
		e.clickFlush.Set()

	case "get_metrics":
		e.replyMetrics()
	}
}

func (e *Engine) replyMetrics() {
	snap := e.Metrics()
	payload, err := json.Marshal(struct {
		Type           string  `json:"type"`
		FramesCaptured uint64  `json:"framesCaptured"`
		FramesEncoded  uint64  `json:"framesEncoded"`
		FramesDropped  uint64  `json:"framesDropped"`
		AuxOmitted     uint64  `json:"auxOmitted"`
		Keyframes      uint64  `json:"keyframes"`
		BandwidthKBps  float64 `json:"bandwidthKBps"`
		CurrentBitrate int     `json:"currentBitrateKbps"`
	}{
		Type:           "metrics",
		FramesCaptured: snap.FramesCaptured,
		FramesEncoded:  snap.FramesEncoded,
		FramesDropped:  snap.FramesDropped,
		AuxOmitted:     snap.AuxOmitted,
		Keyframes:      snap.Keyframes,
		BandwidthKBps:  snap.BandwidthKBps,
		CurrentBitrate: snap.CurrentBitrate,
	})
	if err != nil {
		controlLog.Error("failed to marshal metrics reply", "error", err)
		return
	}
	if err := e.transport.SendControl(payload); err != nil {
		controlLog.Debug("metrics reply send failed", "error", err)
	}
}
