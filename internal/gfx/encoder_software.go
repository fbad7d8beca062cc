package gfx

import (
	"encoding/binary"
	"sync"
)

// softwareBackend is the always-available fallback: it performs no real
// compression and emits the YUV planes wrapped as a single synthetic NAL
// unit. It exists so the AVC444 state machine and dispatcher can be
// exercised end to end (including in tests) without the openh264 backend,
// mirroring the teacher's softwareEncoder passthrough placeholder.
type softwareBackend struct {
	mu          sync.Mutex
	bitrateKbps int
	fps         int
}

func newSoftwareBackend(width, height, bitrateKbps, fps int) (h264Backend, error) {
	return &softwareBackend{bitrateKbps: bitrateKbps, fps: fps}, nil
}

func (s *softwareBackend) EncodeView(yuv YuvFrame, forceKeyframe bool) ([]byte, bool, error) {
	if len(yuv.Y) == 0 {
		return nil, false, ErrEncoderRecoverable
	}
	var header byte
	if forceKeyframe {
		header = 0x65 // NAL unit type 5: IDR slice
	} else {
		header = 0x61 // NAL unit type 1: non-IDR slice
	}
	body := make([]byte, 0, len(yuv.Y)+len(yuv.U)+len(yuv.V)+1)
	body = append(body, header)
	body = append(body, yuv.Y...)
	body = append(body, yuv.U...)
	body = append(body, yuv.V...)

	// AVC length-prefixed form (spec.md §4.3): 4-byte BE length + body, no
	// Annex-B start code.
	nalu := make([]byte, 0, 4+len(body))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	nalu = append(nalu, lenBuf[:]...)
	nalu = append(nalu, body...)
	return nalu, forceKeyframe, nil
}

func (s *softwareBackend) SetBitrate(bitrateKbps int) error {
	if bitrateKbps <= 0 {
		return ErrEncoderInit
	}
	s.mu.Lock()
	s.bitrateKbps = bitrateKbps
	s.mu.Unlock()
	return nil
}

func (s *softwareBackend) SetFramerate(fps int) error {
	if fps <= 0 {
		return ErrEncoderInit
	}
	s.mu.Lock()
	s.fps = fps
	s.mu.Unlock()
	return nil
}

func (s *softwareBackend) Close() error { return nil }

func (s *softwareBackend) Name() string { return "software" }
