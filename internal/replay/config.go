package replay

import (
	"time"

	"github.com/okian/drowsywatch/internal/domain/alert"
)

// Config holds configuration for a replay run.
type Config struct {
	Input      string           // JSONL file to replay; "-" reads stdin
	Thresholds alert.Thresholds // alert tuning under test
	Quiet      bool             // print the summary only
}

// Record is one input line. Either EAR/MAR are given directly, or a
// landmark set with the frame size it was detected in.
type Record struct {
	EAR       *float64    `json:"ear,omitempty"`
	MAR       *float64    `json:"mar,omitempty"`
	Width     int         `json:"width,omitempty"`
	Height    int         `json:"height,omitempty"`
	Landmarks [][]float64 `json:"landmarks,omitempty"`
}

// Stats summarizes a replay.
type Stats struct {
	Frames       int
	Skipped      int
	NoFace       int
	AwakeFrames  int
	DrowsyFrames int
	DeepFrames   int
	MouthTrips   int
	EyeTrips     int
	Vigilance    int
	AvgVigilance float64
	Duration     time.Duration
}
