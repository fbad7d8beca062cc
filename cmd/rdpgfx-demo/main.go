package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/rdpgfx/internal/config"
	"github.com/breeze-rmm/rdpgfx/internal/logging"
	"github.com/breeze-rmm/rdpgfx/internal/session"
)

var (
	version = "0.1.0"
	cfgFile string
	width   int
	height  int
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "rdpgfx-demo",
	Short: "rdpgfx display/channel engine demo",
	Long:  "A synthetic-collaborator harness for the rdpgfx session engine: wires a moving-gradient frame source, a no-op input source, and a stdout transport so the encoder/dispatcher/multiplexer/clipboard pipeline can be exercised without a real RDP viewer.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one session against synthetic collaborators",
	Run: func(cmd *cobra.Command, args []string) {
		runDemo()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rdpgfx-demo v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./rdpgfx.yaml)")
	runCmd.Flags().IntVar(&width, "width", 640, "synthetic display width")
	runCmd.Flags().IntVar(&height, "height", 480, "synthetic display height")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDemo() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	var logFile *logging.RotatingWriter
	if cfg.LogFile != "" {
		logFile, err = logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer logFile.Close()
	}
	if logFile != nil {
		logging.Init(cfg.LogFormat, cfg.LogLevel, logging.TeeWriter(os.Stdout, logFile))
	} else {
		logging.Init(cfg.LogFormat, cfg.LogLevel, nil)
	}
	log = logging.L("main")

	log.Info("starting demo session", "version", version, "width", width, "height", height, "targetFps", cfg.TargetFPS)

	transport := newStdoutTransport()
	engine, err := session.New(session.Params{
		Config:      cfg,
		Width:       width,
		Height:      height,
		FrameSource: newSyntheticFrameSource(width, height, cfg.TargetFPS),
		InputSource: newIdleInputSource(),
		Transport:   transport,
		Clipboard:   session.ClipboardCollaborators{OS: newMemoryClipboard()},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to construct session engine: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start session engine: %v\n", err)
		os.Exit(1)
	}

	<-ctx.Done()
	log.Info("shutdown signal received, stopping session")
	engine.Stop()

	snap := engine.Metrics()
	log.Info("final metrics",
		"framesCaptured", snap.FramesCaptured,
		"framesEncoded", snap.FramesEncoded,
		"framesDropped", snap.FramesDropped,
		"keyframes", snap.Keyframes,
		"bandwidthKBps", snap.BandwidthKBps,
	)
}
