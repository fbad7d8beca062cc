package session

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/breeze-rmm/rdpgfx/internal/clipboard"
)

func TestOnRemoteFormatListAdvertisesOwnership(t *testing.T) {
	fs := newFakeFrameSource()
	is := newFakeInputSource()
	tr := &fakeTransport{}
	e := newTestEngine(t, fs, is, tr)

	payload, _ := json.Marshal(formatListEnvelope{
		Formats: []clipboard.FormatEntry{{ID: clipboard.FormatUnicodeText}},
	})
	e.onRemoteFormatList(payload)

	if e.ClipboardState() != clipboard.RemoteOwned {
		t.Fatalf("state = %v, want RemoteOwned", e.ClipboardState())
	}
}

func TestOnRemoteFormatListMalformedPayloadIsIgnored(t *testing.T) {
	fs := newFakeFrameSource()
	is := newFakeInputSource()
	tr := &fakeTransport{}
	e := newTestEngine(t, fs, is, tr)

	e.onRemoteFormatList([]byte("not json"))

	if e.ClipboardState() != clipboard.Idle {
		t.Fatalf("a malformed format_list must not change owner state, got %v", e.ClipboardState())
	}
}

func TestOnRemoteDataRequestRespondsFromLocalContent(t *testing.T) {
	fakeOS := newFakeOSClipboard()
	if err := fakeOS.SetContent(clipboard.Content{Format: clipboard.FormatUnicodeText, Text: "hello"}); err != nil {
		t.Fatalf("SetContent: %v", err)
	}
	e := newTestEngineWithOS(t, fakeOS)
	if _, err := e.clipEngine.OnLocalOwnershipChanged([]clipboard.FormatEntry{{ID: clipboard.FormatUnicodeText}}); err != nil {
		t.Fatalf("OnLocalOwnershipChanged: %v", err)
	}

	req, _ := json.Marshal(dataRequestEnvelope{Format: clipboard.FormatUnicodeText, Serial: 1})
	e.onRemoteDataRequest(req)

	tr := e.transport.(*fakeTransport)
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.clipboard) != 1 {
		t.Fatalf("expected exactly one clipboard PDU reply, got %d", len(tr.clipboard))
	}
	var resp dataResponseEnvelope
	if err := json.Unmarshal(tr.clipboard[0], &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	text, err := clipboard.DecodeUnicodeText(resp.Bytes)
	if err != nil {
		t.Fatalf("decode response bytes: %v", err)
	}
	if !resp.Success || text != "hello" {
		t.Fatalf("resp = %+v, want success with UTF-16 text %q", resp, "hello")
	}
}

func TestOnRemoteDataRequestDedupsBurst(t *testing.T) {
	fakeOS := newFakeOSClipboard()
	_ = fakeOS.SetContent(clipboard.Content{Format: clipboard.FormatUnicodeText, Text: "hello"})
	e := newTestEngineWithOS(t, fakeOS)
	if _, err := e.clipEngine.OnLocalOwnershipChanged([]clipboard.FormatEntry{{ID: clipboard.FormatUnicodeText}}); err != nil {
		t.Fatalf("OnLocalOwnershipChanged: %v", err)
	}

	req, _ := json.Marshal(dataRequestEnvelope{Format: clipboard.FormatUnicodeText, Serial: 42})
	e.onRemoteDataRequest(req)
	e.onRemoteDataRequest(req)

	tr := e.transport.(*fakeTransport)
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.clipboard) != 1 {
		t.Fatalf("expected the duplicate same-serial request to be swallowed, got %d replies", len(tr.clipboard))
	}
}

func TestOnRemoteDataResponseCompletesPaste(t *testing.T) {
	fakeOS := newFakeOSClipboard()
	e := newTestEngineWithOS(t, fakeOS)

	if err := e.clipEngine.OnRemoteFormatList([]clipboard.FormatEntry{{ID: clipboard.FormatUnicodeText}}); err != nil {
		t.Fatalf("OnRemoteFormatList: %v", err)
	}
	if _, err := e.clipEngine.RequestPaste(); err != nil {
		t.Fatalf("RequestPaste: %v", err)
	}

	resp, _ := json.Marshal(dataResponseEnvelope{
		Format:  clipboard.FormatUnicodeText,
		Success: true,
		Bytes:   clipboard.EncodeUnicodeText("pasted"),
	})
	e.onRemoteDataResponse(resp)

	got, err := fakeOS.GetContent(clipboard.FormatUnicodeText)
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if got.Text != "pasted" {
		t.Fatalf("local OS clipboard content = %q, want %q", got.Text, "pasted")
	}
	if e.ClipboardState() != clipboard.RemoteOwned {
		t.Fatalf("state after completed paste = %v, want RemoteOwned", e.ClipboardState())
	}
}

func TestOnRemoteDataResponseFailureRevertsTransfer(t *testing.T) {
	fakeOS := newFakeOSClipboard()
	e := newTestEngineWithOS(t, fakeOS)

	if err := e.clipEngine.OnRemoteFormatList([]clipboard.FormatEntry{{ID: clipboard.FormatUnicodeText}}); err != nil {
		t.Fatalf("OnRemoteFormatList: %v", err)
	}
	if _, err := e.clipEngine.RequestPaste(); err != nil {
		t.Fatalf("RequestPaste: %v", err)
	}

	resp, _ := json.Marshal(dataResponseEnvelope{Format: clipboard.FormatUnicodeText, Success: false})
	e.onRemoteDataResponse(resp)

	if e.ClipboardState() != clipboard.RemoteOwned {
		t.Fatalf("state after failed paste = %v, want reverted to RemoteOwned", e.ClipboardState())
	}
}

func TestNotifyLocalOwnershipChangedSendsFormatList(t *testing.T) {
	fs := newFakeFrameSource()
	is := newFakeInputSource()
	tr := &fakeTransport{}
	e := newTestEngine(t, fs, is, tr)

	e.NotifyLocalOwnershipChanged([]clipboard.FormatEntry{{ID: clipboard.FormatUnicodeText}})

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.clipboard) != 1 {
		t.Fatalf("expected one format_list advertisement, got %d", len(tr.clipboard))
	}
}

func TestEncodeDecodeContentForWireRoundTrip(t *testing.T) {
	c := clipboard.Content{Format: clipboard.FormatUnicodeText, Text: "round trip"}
	text, raw, files := encodeContentForWire(c)
	resp := dataResponseEnvelope{Format: c.Format, Success: true, Text: text, Bytes: raw, Files: files}
	back := decodeContentFromWire(resp)
	if back.Text != "round trip" {
		t.Fatalf("round-tripped text = %q, want %q", back.Text, "round trip")
	}
}

func newTestEngineWithOS(t *testing.T, os clipboard.OSClipboard) *Engine {
	t.Helper()
	e, err := New(Params{
		Config:      testConfig(),
		Width:       32,
		Height:      32,
		FrameSource: newFakeFrameSource(),
		InputSource: newFakeInputSource(),
		Transport:   &fakeTransport{},
		Clipboard:   ClipboardCollaborators{OS: os},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

type fakeLocalFileSource struct {
	data []byte
}

func (f *fakeLocalFileSource) Open(listIndex uint32) (int64, io.ReaderAt, func() error, error) {
	return int64(len(f.data)), byteReaderAt(f.data), func() error { return nil }, nil
}

type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func newTestEngineWithFileSource(t *testing.T, src clipboard.LocalFileSource) *Engine {
	t.Helper()
	e, err := New(Params{
		Config:      testConfig(),
		Width:       32,
		Height:      32,
		FrameSource: newFakeFrameSource(),
		InputSource: newFakeInputSource(),
		Transport:   &fakeTransport{},
		Clipboard:   ClipboardCollaborators{OS: newFakeOSClipboard(), FileSource: src},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestOnRemoteFilesRequestRespondsWithSize(t *testing.T) {
	e := newTestEngineWithFileSource(t, &fakeLocalFileSource{data: make([]byte, 42)})

	req, _ := json.Marshal(filesRequestEnvelope{StreamID: 7, Flags: uint32(clipboard.ContentsFlagSize)})
	e.onRemoteFilesRequest(req)

	deadline := time.Now().Add(time.Second)
	tr := e.transport.(*fakeTransport)
	for {
		tr.mu.Lock()
		n := len(tr.clipboard)
		tr.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.clipboard) != 1 {
		t.Fatalf("expected one file_contents_response, got %d", len(tr.clipboard))
	}
	var resp filesResponseEnvelope
	if err := json.Unmarshal(tr.clipboard[0], &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success || resp.StreamID != 7 {
		t.Fatalf("resp = %+v, want success streamId=7", resp)
	}
}

func TestOnRemoteFilesRequestWithoutFileServerIsNoop(t *testing.T) {
	e := newTestEngine(t, newFakeFrameSource(), newFakeInputSource(), &fakeTransport{})

	req, _ := json.Marshal(filesRequestEnvelope{StreamID: 1, Flags: uint32(clipboard.ContentsFlagSize)})
	e.onRemoteFilesRequest(req) // must not panic with a nil fileServer

	tr := e.transport.(*fakeTransport)
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.clipboard) != 0 {
		t.Fatalf("expected no reply without a configured file source, got %d", len(tr.clipboard))
	}
}

func TestRequestFileContentsAndOnRemoteFilesResponseCompletesTransfer(t *testing.T) {
	e := newTestEngineWithFileSource(t, &fakeLocalFileSource{})

	streamID, err := e.RequestFileContents(0, "report.pdf", 11)
	if err != nil {
		t.Fatalf("RequestFileContents: %v", err)
	}

	tr := e.transport.(*fakeTransport)
	tr.mu.Lock()
	if len(tr.clipboard) != 1 {
		t.Fatalf("expected the outbound file_contents_request to be sent, got %d messages", len(tr.clipboard))
	}
	tr.mu.Unlock()

	resp, _ := json.Marshal(filesResponseEnvelope{
		StreamID: streamID,
		Success:  true,
		Offset:   0,
		Data:     []byte("hello world"),
		Final:    true,
	})
	e.onRemoteFilesResponse(resp)

	deadline := time.Now().Add(time.Second)
	for {
		e.streamMu.Lock()
		_, stillTracked := e.streamTransfers[streamID]
		e.streamMu.Unlock()
		if !stillTracked || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	e.streamMu.Lock()
	_, stillTracked := e.streamTransfers[streamID]
	e.streamMu.Unlock()
	if stillTracked {
		t.Fatalf("expected the stream-to-transfer mapping to be cleared once the final chunk completes")
	}
}

func TestOnRemoteFilesResponseUnknownStreamIsIgnored(t *testing.T) {
	e := newTestEngineWithFileSource(t, &fakeLocalFileSource{})

	resp, _ := json.Marshal(filesResponseEnvelope{StreamID: 999, Success: true, Data: []byte("x")})
	e.onRemoteFilesResponse(resp) // must not panic despite no tracked transfer
}
