package config

import "fmt"

var validFrameModes = map[string]bool{
	"all_intra":      true,
	"main_predicted": true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult splits validation findings into fatal (startup must
// abort) and warning (logged, value clamped to a safe default) tiers.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool { return len(r.Fatals) > 0 }

// AllErrors returns fatals followed by warnings, for callers that just want
// to log everything found.
func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

// ValidateTiered checks c for invalid values. A non-positive target_fps,
// clipboard_max_bytes or file_chunk_bytes, an unknown frame_mode, and
// invalid or inverted bitrate bounds are fatal. Other out-of-range values
// (queue depths below 1, the aux/keyframe intervals, the I/O worker count,
// the input batch window, an unknown log level or format) are clamped to a
// safe bound and reported as warnings so a bad deployment doesn't refuse
// to start over a cosmetic misconfiguration.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult

	if c.TargetFPS <= 0 {
		r.Fatals = append(r.Fatals, fmt.Errorf("target_fps must be positive, got %d", c.TargetFPS))
	} else if c.TargetFPS > 240 {
		r.Warnings = append(r.Warnings, fmt.Errorf("target_fps %d exceeds maximum 240, clamping", c.TargetFPS))
		c.TargetFPS = 240
	}

	if c.FrameMode == "" {
		c.FrameMode = "all_intra"
	} else if !validFrameModes[c.FrameMode] {
		r.Fatals = append(r.Fatals, fmt.Errorf("frame_mode %q is not valid (use all_intra or main_predicted)", c.FrameMode))
	}

	if c.AuxIntervalMax < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("aux_interval_max %d is below minimum 1, clamping", c.AuxIntervalMax))
		c.AuxIntervalMax = 1
	}

	if c.KeyframeIntervalMax < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("keyframe_interval_max %d is below minimum 1, clamping", c.KeyframeIntervalMax))
		c.KeyframeIntervalMax = 1
	} else if c.KeyframeIntervalMax > 3600 {
		r.Warnings = append(r.Warnings, fmt.Errorf("keyframe_interval_max %d exceeds maximum 3600, clamping", c.KeyframeIntervalMax))
		c.KeyframeIntervalMax = 3600
	}

	if c.MinBitrateKbps <= 0 || c.MaxBitrateKbps <= 0 || c.MinBitrateKbps > c.MaxBitrateKbps {
		r.Fatals = append(r.Fatals, fmt.Errorf("min_bitrate_kbps/max_bitrate_kbps are invalid: %d/%d", c.MinBitrateKbps, c.MaxBitrateKbps))
	} else if c.BitrateKbps < c.MinBitrateKbps {
		r.Warnings = append(r.Warnings, fmt.Errorf("bitrate_kbps %d is below min_bitrate_kbps %d, clamping", c.BitrateKbps, c.MinBitrateKbps))
		c.BitrateKbps = c.MinBitrateKbps
	} else if c.BitrateKbps > c.MaxBitrateKbps {
		r.Warnings = append(r.Warnings, fmt.Errorf("bitrate_kbps %d exceeds max_bitrate_kbps %d, clamping", c.BitrateKbps, c.MaxBitrateKbps))
		c.BitrateKbps = c.MaxBitrateKbps
	}

	clampQueueDepth(&r, "input_queue_depth", &c.InputQueueDepth, 1, 4096)
	clampQueueDepth(&r, "control_queue_depth", &c.ControlQueueDepth, 1, 4096)
	clampQueueDepth(&r, "clipboard_queue_depth", &c.ClipboardQueueDepth, 1, 4096)
	clampQueueDepth(&r, "graphics_queue_depth", &c.GraphicsQueueDepth, 1, 64)

	if c.InputBatchWindowMs < 0 {
		r.Warnings = append(r.Warnings, fmt.Errorf("input_batch_window_ms %d is negative, clamping to 0", c.InputBatchWindowMs))
		c.InputBatchWindowMs = 0
	} else if c.InputBatchWindowMs > 100 {
		r.Warnings = append(r.Warnings, fmt.Errorf("input_batch_window_ms %d exceeds maximum 100, clamping", c.InputBatchWindowMs))
		c.InputBatchWindowMs = 100
	}

	if c.ClipboardMaxBytes <= 0 {
		r.Fatals = append(r.Fatals, fmt.Errorf("clipboard_max_bytes must be positive, got %d", c.ClipboardMaxBytes))
	}

	if c.FileChunkBytes <= 0 {
		r.Fatals = append(r.Fatals, fmt.Errorf("file_chunk_bytes must be positive, got %d", c.FileChunkBytes))
	} else if c.FileChunkBytes > 4<<20 {
		r.Warnings = append(r.Warnings, fmt.Errorf("file_chunk_bytes %d exceeds maximum 4MiB, clamping", c.FileChunkBytes))
		c.FileChunkBytes = 4 << 20
	}

	if c.ClipboardIOWorkers < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("clipboard_io_workers %d is below minimum 1, clamping", c.ClipboardIOWorkers))
		c.ClipboardIOWorkers = 1
	}

	if c.LogLevel != "" && !validLogLevels[c.LogLevel] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_level %q is not valid, defaulting to info", c.LogLevel))
		c.LogLevel = "info"
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_format %q is not valid, defaulting to text", c.LogFormat))
		c.LogFormat = "text"
	}

	return r
}

func clampQueueDepth(r *ValidationResult, field string, v *int, lo, hi int) {
	if *v < lo {
		r.Warnings = append(r.Warnings, fmt.Errorf("%s %d is below minimum %d, clamping", field, *v, lo))
		*v = lo
	} else if *v > hi {
		r.Warnings = append(r.Warnings, fmt.Errorf("%s %d exceeds maximum %d, clamping", field, *v, hi))
		*v = hi
	}
}
