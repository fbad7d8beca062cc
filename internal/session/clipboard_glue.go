package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/breeze-rmm/rdpgfx/internal/clipboard"
	"github.com/breeze-rmm/rdpgfx/internal/logging"
	"github.com/breeze-rmm/rdpgfx/internal/mux"
)

var clipLog = logging.L("session.clipboard")

// Clipboard message kinds exchanged over the multiplexer's clipboard queue
// (mux.ClipboardMessage.Kind), mirrored from MS-RDPECLIP's PDU families
// (spec.md §6 "Clipboard PDUs follow MS-RDPECLIP") but carried as a small
// JSON envelope at this layer rather than the raw CLIPRDR binary layout,
// which belongs to the (out-of-scope) transport's wire encoding.
const (
	clipKindFormatList    = "format_list"
	clipKindDataRequest   = "data_request"
	clipKindDataResponse  = "data_response"
	clipKindFilesRequest  = "file_contents_request"
	clipKindFilesResponse = "file_contents_response"
)

type formatListEnvelope struct {
	Formats []clipboard.FormatEntry `json:"formats"`
}

type dataRequestEnvelope struct {
	Format Format32 `json:"format"`
	Serial uint32   `json:"serial"`
}

type dataResponseEnvelope struct {
	Format  Format32 `json:"format"`
	Success bool     `json:"success"`
	Text    string   `json:"text,omitempty"`
	Bytes   []byte   `json:"bytes,omitempty"`
	Files   []string `json:"files,omitempty"`
}

type filesRequestEnvelope struct {
	StreamID  uint32 `json:"streamId"`
	ListIndex uint32 `json:"listIndex"`
	Offset    int64  `json:"offset"`
	Size      uint32 `json:"size"`
	Flags     uint32 `json:"flags"`
}

type filesResponseEnvelope struct {
	StreamID uint32 `json:"streamId"`
	Success  bool   `json:"success"`
	Offset   int64  `json:"offset"`
	Data     []byte `json:"data,omitempty"`
	Final    bool   `json:"final"`
}

// Format32 is clipboard.Format's JSON-friendly alias (clipboard.Format is
// a uint32, but giving it its own type here keeps the envelope structs
// self-documenting without importing clipboard's internal registry logic).
type Format32 = clipboard.Format

// handleClipboardMessage dispatches one drained clipboard queue entry by
// kind. Errors are classified and handled per spec.md §7 "Clipboard
// transient": they reach the peer as a negative reply, never the session's
// fatal path.
func (e *Engine) handleClipboardMessage(cm mux.ClipboardMessage) {
	switch cm.Kind {
	case clipKindFormatList:
		e.onRemoteFormatList(cm.Payload)
	case clipKindDataRequest:
		e.onRemoteDataRequest(cm.Payload)
	case clipKindDataResponse:
		e.onRemoteDataResponse(cm.Payload)
	case clipKindFilesRequest:
		e.onRemoteFilesRequest(cm.Payload)
	case clipKindFilesResponse:
		e.onRemoteFilesResponse(cm.Payload)
	default:
		clipLog.Warn("unrecognized clipboard message kind", "kind", cm.Kind)
	}
}

func (e *Engine) onRemoteFormatList(payload []byte) {
	var env formatListEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		clipLog.Warn("malformed format_list payload", "error", err)
		return
	}
	if err := e.clipEngine.OnRemoteFormatList(env.Formats); err != nil {
		clipLog.Debug("format list rejected by state machine", "error", err)
	}
}

// onRemoteDataRequest answers a viewer pulling content this core's local
// clipboard owns (delayed rendering: the payload is only materialized now,
// spec.md §5). The loop-prevention fingerprint is recorded before sending
// so the local OS ownership-change echo this produces is recognized as
// our own (spec.md §4.6).
func (e *Engine) onRemoteDataRequest(payload []byte) {
	var req dataRequestEnvelope
	if err := json.Unmarshal(payload, &req); err != nil {
		clipLog.Warn("malformed data_request payload", "error", err)
		return
	}
	if !e.dedup.ShouldHandle(req.Format, req.Serial) {
		return
	}

	content, err := e.clipEngine.PrepareLocalSend(req.Format)
	resp := dataResponseEnvelope{Format: req.Format}
	if err != nil {
		clipLog.Debug("local content unavailable for request", "format", req.Format, "error", err)
		resp.Success = false
	} else {
		resp.Success = true
		resp.Text, resp.Bytes, resp.Files = encodeContentForWire(content)
	}
	e.sendClipboardPDU(clipKindDataResponse, resp)
}

// onRemoteDataResponse completes a transfer this core itself initiated via
// RequestPaste: the viewer's clipboard content arrives and is written to
// the local OS clipboard (spec.md §4.6 "delayed rendering").
func (e *Engine) onRemoteDataResponse(payload []byte) {
	var resp dataResponseEnvelope
	if err := json.Unmarshal(payload, &resp); err != nil {
		clipLog.Warn("malformed data_response payload", "error", err)
		return
	}
	if !resp.Success {
		e.clipEngine.FailPaste()
		return
	}
	content := decodeContentFromWire(resp)
	if err := e.clipEngine.CompletePaste(content); err != nil {
		sev := Classify(err)
		clipLog.Warn("completing paste failed", "error", err, "severity", sev.String())
	}
}

func (e *Engine) onRemoteFilesRequest(payload []byte) {
	if e.fileServer == nil {
		return
	}
	var req filesRequestEnvelope
	if err := json.Unmarshal(payload, &req); err != nil {
		clipLog.Warn("malformed file_contents_request payload", "error", err)
		return
	}
	err := e.fileServer.Request(req.StreamID, req.ListIndex, req.Offset, req.Size, clipboard.ContentsFlag(req.Flags), func(data []byte, err error) {
		e.sendClipboardPDU(clipKindFilesResponse, filesResponseEnvelope{
			StreamID: req.StreamID,
			Success:  err == nil,
			Data:     data,
		})
	})
	if err != nil {
		clipLog.Debug("file contents request rejected", "streamId", req.StreamID, "error", err)
		e.sendClipboardPDU(clipKindFilesResponse, filesResponseEnvelope{StreamID: req.StreamID, Success: false})
	}
}

// RequestFileContents begins tracking an inbound transfer for a dropped
// file named name of size bytes (advertised via an earlier
// FileGroupDescriptorW paste) and sends the pull request to the peer. The
// returned streamID correlates the peer's chunked file_contents_response
// messages back to this transfer.
func (e *Engine) RequestFileContents(listIndex uint32, name string, size int64) (uint32, error) {
	streamID := e.nextStreamID.Add(1)
	transferID := clipboard.NewTransferID()
	if err := e.transferEngine.Begin(transferID, name, size); err != nil {
		return 0, err
	}

	e.streamMu.Lock()
	e.streamTransfers[streamID] = transferID
	e.streamMu.Unlock()

	e.sendClipboardPDU(clipKindFilesRequest, filesRequestEnvelope{
		StreamID:  streamID,
		ListIndex: listIndex,
		Offset:    0,
		Size:      uint32(e.cfg.FileChunkBytes),
	})
	return streamID, nil
}

// onRemoteFilesResponse receives one chunk of an inbound file transfer this
// core began via RequestFileContents, writing it on the I/O worker pool so
// a large transfer never blocks the transport executor's drain loop
// (spec.md §5 "I/O worker pool").
func (e *Engine) onRemoteFilesResponse(payload []byte) {
	var resp filesResponseEnvelope
	if err := json.Unmarshal(payload, &resp); err != nil {
		clipLog.Warn("malformed file_contents_response payload", "error", err)
		return
	}

	e.streamMu.Lock()
	transferID, ok := e.streamTransfers[resp.StreamID]
	e.streamMu.Unlock()
	if !ok {
		clipLog.Debug("file contents response for unknown stream", "streamId", resp.StreamID)
		return
	}

	if !resp.Success {
		clipLog.Debug("peer reported file contents failure", "streamId", resp.StreamID)
		e.abortFileStream(resp.StreamID, transferID)
		return
	}

	err := e.transferEngine.WriteChunk(transferID, resp.Offset, resp.Data, func(err error) {
		if err != nil {
			clipLog.Warn("file transfer chunk write failed", "streamId", resp.StreamID, "error", err)
			return
		}
		if !resp.Final {
			return
		}
		e.streamMu.Lock()
		delete(e.streamTransfers, resp.StreamID)
		e.streamMu.Unlock()
		path, name, err := e.transferEngine.Complete(transferID)
		if err != nil {
			clipLog.Warn("file transfer completion failed", "streamId", resp.StreamID, "error", err)
			return
		}
		clipLog.Debug("file transfer complete", "streamId", resp.StreamID, "name", name, "path", path)
	})
	if err != nil {
		clipLog.Warn("file transfer chunk scheduling failed", "streamId", resp.StreamID, "error", err)
		e.abortFileStream(resp.StreamID, transferID)
	}
}

func (e *Engine) abortFileStream(streamID uint32, transferID string) {
	e.streamMu.Lock()
	delete(e.streamTransfers, streamID)
	e.streamMu.Unlock()
	if err := e.transferEngine.Abort(transferID); err != nil {
		clipLog.Debug("aborting file transfer failed", "streamId", streamID, "error", err)
	}
}

func (e *Engine) sendClipboardPDU(kind string, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		clipLog.Error("failed to marshal clipboard PDU", "kind", kind, "error", err)
		return
	}
	if err := e.transport.SendClipboardPDU(payload); err != nil {
		clipLog.Debug("clipboard PDU send failed", "kind", kind, "error", err)
	}
}

// encodeContentForWire converts a Content value to its wire representation
// per format (spec.md §4.6), using the teacher-grounded codecs in
// convert.go/html.go/image.go.
func encodeContentForWire(c clipboard.Content) (text string, raw []byte, files []string) {
	switch c.Format {
	case clipboard.FormatUnicodeText:
		return "", clipboard.EncodeUnicodeText(c.Text), nil
	case clipboard.FormatText:
		return "", clipboard.EncodeText(c.Text), nil
	case clipboard.FormatHTML:
		return clipboard.EncodeHTML(c.Text), nil, nil
	case clipboard.FormatDIB:
		return "", c.Bytes, nil
	case clipboard.FormatHDROP, clipboard.FormatFileGroupDescriptorW:
		return "", nil, c.Files
	default:
		return c.Text, c.Bytes, c.Files
	}
}

func decodeContentFromWire(resp dataResponseEnvelope) clipboard.Content {
	c := clipboard.Content{Format: resp.Format}
	switch resp.Format {
	case clipboard.FormatUnicodeText:
		if text, err := clipboard.DecodeUnicodeText(resp.Bytes); err == nil {
			c.Text = text
		}
	case clipboard.FormatText:
		c.Text = clipboard.DecodeText(resp.Bytes)
	case clipboard.FormatHTML:
		if frag, err := clipboard.DecodeHTML(resp.Text); err == nil {
			c.Text = frag
		}
	case clipboard.FormatDIB:
		c.Bytes = resp.Bytes
	case clipboard.FormatHDROP, clipboard.FormatFileGroupDescriptorW:
		c.Files = resp.Files
	default:
		c.Text, c.Bytes, c.Files = resp.Text, resp.Bytes, resp.Files
	}
	return c
}

// NotifyLocalOwnershipChanged is invoked by the OsClipboard collaborator's
// on_change callback (spec.md §6) when the local OS clipboard owner
// changes. A resulting format-list advertisement is sent to the peer
// immediately rather than queued, since it carries no payload (delayed
// rendering defers the actual content pull to a later data_request).
func (e *Engine) NotifyLocalOwnershipChanged(formats []clipboard.FormatEntry) {
	advertised, err := e.clipEngine.OnLocalOwnershipChanged(formats)
	if err != nil {
		clipLog.Debug("local ownership change rejected by state machine", "error", err)
		return
	}
	if advertised == nil {
		return
	}
	e.sendClipboardPDU(clipKindFormatList, formatListEnvelope{Formats: advertised})
}

// clipboardMaintenanceLoop periodically enforces the 5-s paste-transfer
// deadline and sweeps file-contents streams idle past 30 s (spec.md §4.6
// "Timeout"), since neither has a natural event to trigger on.
func (e *Engine) clipboardMaintenanceLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(clipboardTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.clipEngine.CheckTransferTimeout() {
				clipLog.Warn("clipboard paste transfer timed out")
			}
			if e.fileServer != nil {
				if expired := e.fileServer.SweepExpired(); len(expired) > 0 {
					clipLog.Debug("file contents streams expired", "streamIds", expired)
				}
			}
		}
	}
}
