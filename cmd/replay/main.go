package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/drowsywatch/internal/domain/alert"
	"github.com/okian/drowsywatch/internal/replay"
	"github.com/okian/drowsywatch/pkg/logger"
)

func main() {
	defaults := alert.DefaultThresholds()
	var (
		input       = flag.String("input", "-", "JSONL file to replay, \"-\" for stdin")
		generate    = flag.Int("generate", 0, "Write N synthetic ratio records to stdout instead of replaying")
		seed        = flag.Uint64("seed", 1, "Seed for -generate")
		eyeAR       = flag.Float64("eye-ar", defaults.EyeAR, "EAR below which eyes count as closed")
		mouthAR     = flag.Float64("mouth-ar", defaults.MouthAR, "MAR above which the mouth counts as open")
		eyeFrames   = flag.Int("eye-frames", defaults.EyeFrames, "Consecutive closed-eye frames before DEEP SLEEP")
		mouthFrames = flag.Int("mouth-frames", defaults.MouthFrames, "Consecutive open-mouth frames before DROWSY")
		quiet       = flag.Bool("quiet", false, "Print only the summary")
		logFile     = flag.String("log", "", "Also write logs to this file")
		verbose     = flag.Bool("verbose", false, "Enable debug logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		replay.ShowHelp()
		return
	}

	if *generate > 0 {
		if err := replay.Generate(os.Stdout, *generate, *seed); err != nil {
			os.Stderr.WriteString("Generate failed: " + err.Error() + "\n")
			os.Exit(1)
		}
		return
	}

	if err := replay.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	in, err := replay.Open(*input)
	if err != nil {
		logger.Get().Error(ctx, "cannot read input", logger.String("input", *input), logger.Error(err))
		return
	}
	defer in.Close()

	config := &replay.Config{
		Input: *input,
		Thresholds: alert.Thresholds{
			EyeAR:       *eyeAR,
			MouthAR:     *mouthAR,
			EyeFrames:   *eyeFrames,
			MouthFrames: *mouthFrames,
		},
		Quiet: *quiet,
	}

	stats, err := replay.Run(ctx, config, in, os.Stdout)
	if err != nil {
		logger.Get().Error(ctx, "replay failed", logger.Error(err))
		return
	}
	replay.Report(ctx, stats)
	fmt.Printf("frames=%d skipped=%d drowsy_trips=%d deep_sleep_trips=%d vigilance=%d avg_vigilance=%.1f\n",
		stats.Frames, stats.Skipped, stats.MouthTrips, stats.EyeTrips, stats.Vigilance, stats.AvgVigilance)
}
