package gfx

import "testing"

func TestStreamMetricsRecordEncodeTalliesBytesAndKeyframes(t *testing.T) {
	m := NewStreamMetrics()
	aux := EncodedUnit{Kind: UnitPredictedP, NALUs: make([]byte, 40)}
	frame := Avc444Frame{
		Main: EncodedUnit{Kind: UnitKeyframeIDR, NALUs: make([]byte, 100)},
		Aux:  &aux,
		LC:   LCBoth,
	}
	m.RecordEncode(0, frame)

	snap := m.Snapshot()
	if snap.FramesEncoded != 1 {
		t.Fatalf("expected 1 frame encoded, got %d", snap.FramesEncoded)
	}
	if snap.Keyframes != 1 {
		t.Fatalf("expected 1 keyframe recorded, got %d", snap.Keyframes)
	}
	if snap.LastMainBytes != 100 || snap.LastAuxBytes != 40 {
		t.Fatalf("expected main=100 aux=40 bytes, got main=%d aux=%d", snap.LastMainBytes, snap.LastAuxBytes)
	}
}

func TestStreamMetricsRecordEncodeCountsOmittedAux(t *testing.T) {
	m := NewStreamMetrics()
	frame := Avc444Frame{
		Main: EncodedUnit{Kind: UnitPredictedP, NALUs: make([]byte, 60)},
		LC:   LCLumaOnly,
	}
	m.RecordEncode(0, frame)

	snap := m.Snapshot()
	if snap.AuxOmitted != 1 {
		t.Fatalf("expected 1 aux-omitted frame, got %d", snap.AuxOmitted)
	}
	if snap.LastAuxBytes != 0 {
		t.Fatalf("expected 0 aux bytes when omitted, got %d", snap.LastAuxBytes)
	}
}

func TestStreamMetricsRecordDrop(t *testing.T) {
	m := NewStreamMetrics()
	m.RecordDrop()
	m.RecordDrop()
	if got := m.Snapshot().FramesDropped; got != 2 {
		t.Fatalf("expected 2 drops recorded, got %d", got)
	}
}
