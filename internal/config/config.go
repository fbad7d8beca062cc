// Package config loads and validates the engine's configuration surface:
// encoder tuning, queue sizing, and the ambient logging/worker-pool knobs,
// viper-backed with mapstructure tags and an RDPGFX_ environment prefix.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"

	"github.com/spf13/viper"

	"github.com/breeze-rmm/rdpgfx/internal/logging"
)

var log = logging.L("config")

// Config is the engine's full configuration surface.
type Config struct {
	// Display pipeline (gfx package).
	TargetFPS           int    `mapstructure:"target_fps"`
	FrameMode           string `mapstructure:"frame_mode"` // "all_intra" or "main_predicted"
	EnableAuxOmission   bool   `mapstructure:"enable_aux_omission"`
	AuxIntervalMax      int    `mapstructure:"aux_interval_max"`
	KeyframeIntervalMax int    `mapstructure:"keyframe_interval_max"`
	BitrateKbps         int    `mapstructure:"bitrate_kbps"`
	MinBitrateKbps      int    `mapstructure:"min_bitrate_kbps"`
	MaxBitrateKbps      int    `mapstructure:"max_bitrate_kbps"`

	// Priority multiplexer (mux package) queue depths.
	InputQueueDepth     int `mapstructure:"input_queue_depth"`
	ControlQueueDepth   int `mapstructure:"control_queue_depth"`
	ClipboardQueueDepth int `mapstructure:"clipboard_queue_depth"`
	GraphicsQueueDepth  int `mapstructure:"graphics_queue_depth"`
	InputBatchWindowMs  int `mapstructure:"input_batch_window_ms"`

	// Clipboard engine.
	ClipboardMaxBytes  int64 `mapstructure:"clipboard_max_bytes"`
	FileChunkBytes     int   `mapstructure:"file_chunk_bytes"`
	ClipboardIOWorkers int   `mapstructure:"clipboard_io_workers"`

	// Ambient logging.
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

func Default() *Config {
	return &Config{
		TargetFPS:           30,
		FrameMode:           "all_intra",
		EnableAuxOmission:   true,
		AuxIntervalMax:      30,
		KeyframeIntervalMax: 300,
		BitrateKbps:         4000,
		MinBitrateKbps:      500,
		MaxBitrateKbps:      12000,

		InputQueueDepth:     256,
		ControlQueueDepth:   64,
		ClipboardQueueDepth: 16,
		GraphicsQueueDepth:  4,
		InputBatchWindowMs:  8,

		ClipboardMaxBytes:  64 << 20,
		FileChunkBytes:     256 << 10,
		ClipboardIOWorkers: 2,

		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  50,
		LogMaxBackups: 3,
	}
}

// Load reads configuration from cfgFile (or the platform config dir/cwd if
// empty), overlaying environment variables prefixed RDPGFX_, validates it,
// and returns the result. Fatal validation errors abort startup; warnings
// are logged and the (clamped) config is returned.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("rdpgfx")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("RDPGFX")
	// AutomaticEnv only consults the environment for keys viper already
	// knows; bind every field so an env-only override reaches Unmarshal.
	t := reflect.TypeOf(*cfg)
	for i := 0; i < t.NumField(); i++ {
		_ = v.BindEnv(t.Field(i).Tag.Get("mapstructure"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	v := viper.New()
	v.Set("target_fps", cfg.TargetFPS)
	v.Set("frame_mode", cfg.FrameMode)
	v.Set("enable_aux_omission", cfg.EnableAuxOmission)
	v.Set("aux_interval_max", cfg.AuxIntervalMax)
	v.Set("keyframe_interval_max", cfg.KeyframeIntervalMax)
	v.Set("bitrate_kbps", cfg.BitrateKbps)
	v.Set("min_bitrate_kbps", cfg.MinBitrateKbps)
	v.Set("max_bitrate_kbps", cfg.MaxBitrateKbps)
	v.Set("input_queue_depth", cfg.InputQueueDepth)
	v.Set("control_queue_depth", cfg.ControlQueueDepth)
	v.Set("clipboard_queue_depth", cfg.ClipboardQueueDepth)
	v.Set("graphics_queue_depth", cfg.GraphicsQueueDepth)
	v.Set("input_batch_window_ms", cfg.InputBatchWindowMs)
	v.Set("clipboard_max_bytes", cfg.ClipboardMaxBytes)
	v.Set("file_chunk_bytes", cfg.FileChunkBytes)
	v.Set("clipboard_io_workers", cfg.ClipboardIOWorkers)
	v.Set("log_level", cfg.LogLevel)
	v.Set("log_format", cfg.LogFormat)
	v.Set("log_file", cfg.LogFile)
	v.Set("log_max_size_mb", cfg.LogMaxSizeMB)
	v.Set("log_max_backups", cfg.LogMaxBackups)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "rdpgfx.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	return v.WriteConfigAs(cfgPath)
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "rdpgfx")
	case "darwin":
		return "/Library/Application Support/rdpgfx"
	default:
		return "/etc/rdpgfx"
	}
}
