package gfx

import (
	"fmt"
	"sync"

	openh264 "github.com/y9o/go-openh264"
)

// openH264Backend wraps a single go-openh264 encoder instance. AVC444's
// single-underlying-encoder requirement (spec.md §3) is satisfied at this
// object's level: both the main and auxiliary logical views are pushed
// through the same *openh264.Encoder, one EncodeView call per view per
// frame, so there is exactly one codec instance and one bitstream config
// per stream pair rather than two independently-tuned encoders drifting
// apart.
type openH264Backend struct {
	mu  sync.Mutex
	enc *openh264.Encoder
}

func newOpenH264Backend(width, height, bitrateKbps, fps int) (h264Backend, error) {
	enc, err := openh264.NewEncoder(openh264.Config{
		Width:       width,
		Height:      height,
		BitrateBps:  bitrateKbps * 1000,
		MaxFrameFPS: float32(fps),
		UsageType:   openh264.ScreenContentRealTime,
	})
	if err != nil {
		return nil, fmt.Errorf("openh264 encoder init: %w", err)
	}
	return &openH264Backend{enc: enc}, nil
}

func (o *openH264Backend) EncodeView(yuv YuvFrame, forceKeyframe bool) ([]byte, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if forceKeyframe {
		o.enc.ForceIntraFrame()
	}

	frame := openh264.Image{
		Width:  yuv.PaddedWidth,
		Height: yuv.PaddedHeight,
		Y:      yuv.Y,
		U:      yuv.U,
		V:      yuv.V,
	}
	nalus, info, err := o.enc.EncodeFrame(frame)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrEncoderRecoverable, err)
	}
	// go-openh264 emits Annex-B bitstream; this core's wire format forbids
	// Annex-B start codes (spec.md §4.3), so convert before returning.
	return annexBToAVCC(nalus), info.IsKeyFrame, nil
}

func (o *openH264Backend) SetBitrate(bitrateKbps int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enc.SetBitrate(bitrateKbps * 1000)
}

func (o *openH264Backend) SetFramerate(fps int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enc.SetMaxFrameRate(float32(fps))
}

func (o *openH264Backend) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enc.Close()
}

func (o *openH264Backend) Name() string { return "openh264" }
