package replay

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/drowsywatch/pkg/logger"
)

// SetupLogging initializes the logger on stderr, keeping stdout for
// results, and tees into logFile when set.
func SetupLogging(logFile string, verbose bool) error {
	opts := []logger.Option{logger.WithOutput(os.Stderr)}
	if logFile != "" {
		opts = append(opts, logger.WithFile(logFile))
	}
	if err := logger.Init(opts...); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return nil
}

// Open returns the input named by path; "-" or "" is stdin.
func Open(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

// ShowHelp prints usage information for the replay tool.
func ShowHelp() {
	os.Stdout.WriteString(`DrowsyWatch Replay Tool
=======================

Runs recorded per-frame measurements through the alert state machine and
vigilance scoring, one output line per frame.

Input is JSON lines, either ratios:
  {"ear":0.31,"mar":0.22}
or a face landmark set (normalized x,y[,z]) with its frame size:
  {"width":640,"height":480,"landmarks":[[0.41,0.38],...]}
An empty landmark list replays a frame without a face. Blank lines and
lines starting with # are ignored.

Usage:
  go run ./cmd/replay [options]

Options:
  -input string
        JSONL file to replay, "-" for stdin (default "-")
  -generate int
        Write N synthetic ratio records to stdout instead of replaying
  -seed uint
        Seed for -generate (default 1)
  -eye-ar float
        EAR below which eyes count as closed (default 0.25)
  -mouth-ar float
        MAR above which the mouth counts as open (default 0.5)
  -eye-frames int
        Consecutive closed-eye frames before DEEP SLEEP (default 20)
  -mouth-frames int
        Consecutive open-mouth frames before DROWSY (default 35)
  -quiet
        Print only the summary
  -log string
        Also write logs to this file
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  # Generate a synthetic session and replay it with stricter eye settings
  go run ./cmd/replay -generate 3000 > session.jsonl
  go run ./cmd/replay -input session.jsonl -eye-frames 10 -quiet
`)
}
