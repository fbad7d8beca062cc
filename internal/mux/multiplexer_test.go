package mux

import (
	"testing"

	"github.com/breeze-rmm/rdpgfx/internal/gfx"
)

func TestDrainBatchOrderAndLimits(t *testing.T) {
	m := New(Config{InputDepth: 64, ControlDepth: 64, ClipboardDepth: 64, GraphicsDepth: 8})

	for i := 0; i < 10; i++ {
		m.PushInput(InputEvent{Type: "key_down", Key: "a"})
	}
	for i := 0; i < 10; i++ {
		m.PushControl(ControlMessage{Type: "set_bitrate", Value: i})
		m.PushControl(ControlMessage{Type: "set_fps", Value: i})
	}
	for i := 0; i < 10; i++ {
		m.PushClipboard(ClipboardMessage{Kind: "data_request", Payload: []byte{byte(i)}})
	}
	for i := 0; i < 3; i++ {
		m.PushGraphics(GraphicsItem{Frame: gfx.Avc444Frame{PtsUs: uint64(i), LC: gfx.LCLumaOnly}})
	}

	batch := m.DrainBatch(DrainBatchLimits{MaxControl: 1, MaxClipboard: 1})

	if len(batch.Input) != 10 {
		t.Fatalf("expected all 10 input events drained, got %d", len(batch.Input))
	}
	if len(batch.Control) != 1 {
		t.Fatalf("expected control capped at 1, got %d", len(batch.Control))
	}
	if len(batch.Clipboard) != 1 {
		t.Fatalf("expected clipboard capped at 1, got %d", len(batch.Clipboard))
	}
	if batch.Graphics == nil {
		t.Fatal("expected one graphics item drained")
	}
}

func TestPushControlDedupesSameType(t *testing.T) {
	m := New(Config{ControlDepth: 64})
	m.PushControl(ControlMessage{Type: "set_bitrate", Value: 1})
	m.PushControl(ControlMessage{Type: "set_bitrate", Value: 2})
	m.PushControl(ControlMessage{Type: "set_bitrate", Value: 3})

	batch := m.DrainBatch(DrainBatchLimits{MaxControl: 10})
	if len(batch.Control) != 1 {
		t.Fatalf("expected consecutive same-type control messages to collapse, got %d", len(batch.Control))
	}
	if batch.Control[0].Value != 3 {
		t.Fatalf("expected latest value 3 to survive, got %d", batch.Control[0].Value)
	}
}

func TestPushGraphicsReplacesHeadUnderOverflow(t *testing.T) {
	m := New(Config{GraphicsDepth: 2})

	m.PushGraphics(GraphicsItem{Frame: gfx.Avc444Frame{PtsUs: 1, LC: gfx.LCLumaOnly, Main: gfx.EncodedUnit{Kind: gfx.UnitKeyframeIDR}}})
	m.PushGraphics(GraphicsItem{Frame: gfx.Avc444Frame{PtsUs: 2, LC: gfx.LCLumaOnly, Main: gfx.EncodedUnit{Kind: gfx.UnitPredictedP}}})
	// Queue is full (2/2); this push discards the oldest queued frame (pts=1).
	m.PushGraphics(GraphicsItem{Frame: gfx.Avc444Frame{PtsUs: 3, LC: gfx.LCLumaOnly, Main: gfx.EncodedUnit{Kind: gfx.UnitPredictedP}}})

	var seen []uint64
	for {
		batch := m.DrainBatch(DrainBatchLimits{})
		if batch.Graphics == nil {
			break
		}
		seen = append(seen, batch.Graphics.Frame.PtsUs)
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 surviving frames, got %d: %v", len(seen), seen)
	}
	if seen[0] != 2 || seen[1] != 3 {
		t.Fatalf("expected the oldest frame (pts=1) to be discarded, got order %v", seen)
	}
	if m.DroppedCounts().Graphics != 1 {
		t.Fatalf("expected 1 dropped graphics frame recorded, got %d", m.DroppedCounts().Graphics)
	}
}

func TestPushClipboardNeverCoalescesFileChunks(t *testing.T) {
	m := New(Config{ClipboardDepth: 64})
	m.PushClipboard(ClipboardMessage{Kind: "file_contents_request", Payload: []byte{1}})
	m.PushClipboard(ClipboardMessage{Kind: "file_contents_request", Payload: []byte{2}})

	batch := m.DrainBatch(DrainBatchLimits{MaxClipboard: 10})
	if len(batch.Clipboard) != 2 {
		t.Fatalf("expected both in-progress file chunk requests to survive uncoalesced, got %d", len(batch.Clipboard))
	}
}

func TestPushClipboardProtectsInProgressFileChunksFromEviction(t *testing.T) {
	m := New(Config{ClipboardDepth: 2})
	m.PushClipboard(ClipboardMessage{Kind: "file_contents_response", Payload: []byte{1}})
	m.PushClipboard(ClipboardMessage{Kind: "file_contents_response", Payload: []byte{2}})
	// Queue is full of protected messages; this push must not drop either.
	m.PushClipboard(ClipboardMessage{Kind: "file_contents_response", Payload: []byte{3}})

	batch := m.DrainBatch(DrainBatchLimits{MaxClipboard: 10})
	if len(batch.Clipboard) != 3 {
		t.Fatalf("expected all 3 in-progress file chunks to survive overflow, got %d", len(batch.Clipboard))
	}
	if m.DroppedCounts().Clipboard != 0 {
		t.Fatalf("expected no clipboard drops when every queued message is a protected file chunk, got %d", m.DroppedCounts().Clipboard)
	}
}

func TestPushClipboardEvictsNonFileChunkBeforeFileChunk(t *testing.T) {
	m := New(Config{ClipboardDepth: 2})
	m.PushClipboard(ClipboardMessage{Kind: "format_list", Payload: []byte{1}})
	m.PushClipboard(ClipboardMessage{Kind: "file_contents_response", Payload: []byte{2}})
	// Queue is full; the format_list is the only safe-to-drop entry.
	m.PushClipboard(ClipboardMessage{Kind: "file_contents_response", Payload: []byte{3}})

	batch := m.DrainBatch(DrainBatchLimits{MaxClipboard: 10})
	if len(batch.Clipboard) != 2 {
		t.Fatalf("expected 2 surviving messages, got %d", len(batch.Clipboard))
	}
	for _, c := range batch.Clipboard {
		if c.Kind == "format_list" {
			t.Fatal("expected the non-file-chunk message to be the one evicted")
		}
	}
	if m.DroppedCounts().Clipboard != 1 {
		t.Fatalf("expected 1 clipboard drop, got %d", m.DroppedCounts().Clipboard)
	}
}

func TestCoalesceInputMergesMotionAndScrollNotKeys(t *testing.T) {
	events := []InputEvent{
		{Type: "mouse_move", X: 1, Y: 1},
		{Type: "mouse_move", X: 2, Y: 2},
		{Type: "mouse_move", X: 3, Y: 3},
		{Type: "scroll", Delta: 1},
		{Type: "scroll", Delta: 2},
		{Type: "key_down", Key: "a"},
		{Type: "key_up", Key: "a"},
	}
	out := CoalesceInput(events)
	if len(out) != 4 {
		t.Fatalf("expected 4 coalesced events, got %d: %+v", len(out), out)
	}
	if out[0].Type != "mouse_move" || out[0].X != 3 {
		t.Fatalf("expected coalesced motion to keep last position, got %+v", out[0])
	}
	if out[1].Type != "scroll" || out[1].Delta != 3 {
		t.Fatalf("expected coalesced scroll to sum to 3, got %+v", out[1])
	}
	if out[2].Type != "key_down" || out[3].Type != "key_up" {
		t.Fatalf("expected key_down/key_up to survive uncoalesced, got %+v, %+v", out[2], out[3])
	}
}

func TestPushInputDropsOldestWhenFull(t *testing.T) {
	m := New(Config{InputDepth: 2})
	m.PushInput(InputEvent{Type: "key_down", Key: "1"})
	m.PushInput(InputEvent{Type: "key_down", Key: "2"})
	m.PushInput(InputEvent{Type: "key_down", Key: "3"})

	batch := m.DrainBatch(DrainBatchLimits{})
	if len(batch.Input) != 2 {
		t.Fatalf("expected queue capped at 2, got %d", len(batch.Input))
	}
	if batch.Input[0].Key != "2" || batch.Input[1].Key != "3" {
		t.Fatalf("expected oldest dropped, keeping [2,3], got %+v", batch.Input)
	}
	if m.DroppedCounts().Input != 1 {
		t.Fatalf("expected 1 dropped input recorded, got %d", m.DroppedCounts().Input)
	}
}
