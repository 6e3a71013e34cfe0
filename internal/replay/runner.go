// Package replay feeds recorded per-frame measurements through the alert
// state machine and session scoring without a camera.
package replay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/okian/drowsywatch/internal/adapters/repository"
	"github.com/okian/drowsywatch/internal/domain/alert"
	"github.com/okian/drowsywatch/internal/domain/landmarks"
	"github.com/okian/drowsywatch/internal/domain/model"
	"github.com/okian/drowsywatch/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxLineBytes = 1 << 20

// Errors returned by the runner.
var (
	ErrInvalidRecord = errors.New("invalid record")
)

// Run replays every line of r, writing one result line per frame to w
// (unless quiet) and returning the summary. Bad lines are logged and
// skipped; only read failures abort.
func Run(ctx context.Context, config *Config, r io.Reader, w io.Writer) (Stats, error) {
	th := config.Thresholds
	if err := th.Validate(); err != nil {
		return Stats{}, err
	}

	var (
		stats  Stats
		state  alert.State
		mapper = landmarks.NewMapper()
		store  = repository.NewSessionStore()
		start  = time.Now()
		log    = logger.Get().Named("replay")
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		reading, face, err := parse(text, mapper)
		if err != nil {
			stats.Skipped++
			log.Warn(ctx, "skipping line", logger.Int("line", line), logger.Error(err))
			continue
		}

		var d alert.Decision
		if face {
			state, d = th.Step(state, reading.EAR, reading.MAR)
			reading.Status = d.Status
		} else {
			stats.NoFace++
		}
		reading.Seq = uint64(stats.Frames + 1)
		reading.ClosedEyes, reading.MouthOpen = state.ClosedEyes, state.MouthOpen

		snap := store.Record(ctx, reading, d)
		stats.Frames++
		switch reading.Status {
		case alert.Drowsy:
			stats.DrowsyFrames++
		case alert.DeepSleep:
			stats.DeepFrames++
		default:
			stats.AwakeFrames++
		}
		if d.MouthTriggered {
			stats.MouthTrips++
		}
		if d.EyesTriggered {
			stats.EyeTrips++
		}

		if !config.Quiet {
			fmt.Fprintf(w, "frame=%d ear=%.3f mar=%.3f status=%q closed=%d open=%d vigilance=%d\n",
				reading.Seq, reading.EAR, reading.MAR, reading.Status.String(),
				reading.ClosedEyes, reading.MouthOpen, snap.Vigilance)
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("read input: %w", err)
	}

	snap := store.Snapshot(ctx)
	stats.Vigilance = snap.Vigilance
	stats.AvgVigilance = snap.AvgVigilance
	stats.Duration = time.Since(start)
	return stats, nil
}

// parse decodes one line. face is false for a landmark record with no
// points, which replays as a frame without a face.
func parse(text string, mapper *landmarks.Mapper) (model.Reading, bool, error) {
	var rec Record
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return model.Reading{}, false, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	reading := model.Reading{Time: time.Now(), EAR: 1.0}
	switch {
	case rec.EAR != nil || rec.MAR != nil:
		if rec.EAR == nil || rec.MAR == nil {
			return model.Reading{}, false, fmt.Errorf("%w: ear and mar must be given together", ErrInvalidRecord)
		}
		reading.EAR, reading.MAR = *rec.EAR, *rec.MAR
	case rec.Landmarks != nil:
		if len(rec.Landmarks) == 0 {
			return reading, false, nil
		}
		if rec.Width <= 0 || rec.Height <= 0 {
			return model.Reading{}, false, fmt.Errorf("%w: width and height are required with landmarks", ErrInvalidRecord)
		}
		set, err := toSet(rec.Landmarks)
		if err != nil {
			return model.Reading{}, false, err
		}
		regions, err := mapper.Map(set, rec.Width, rec.Height)
		if err != nil {
			return model.Reading{}, false, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
		reading.EAR, reading.MAR = regions.Ratios()
	default:
		return model.Reading{}, false, fmt.Errorf("%w: neither ratios nor landmarks", ErrInvalidRecord)
	}
	reading.FaceFound = true
	return reading, true, nil
}

func toSet(points [][]float64) (landmarks.Set, error) {
	set := make(landmarks.Set, len(points))
	for i, p := range points {
		if len(p) < 2 {
			return nil, fmt.Errorf("%w: landmark %d needs x and y", ErrInvalidRecord, i)
		}
		set[i] = landmarks.Landmark{X: p[0], Y: p[1]}
		if len(p) > 2 {
			set[i].Z = p[2]
		}
	}
	return set, nil
}

// Report logs the summary of a replay.
func Report(ctx context.Context, stats Stats) {
	logger.Get().Info(ctx, "replay finished",
		logger.Int("frames", stats.Frames),
		logger.Int("skipped", stats.Skipped),
		logger.Int("noFace", stats.NoFace),
		logger.Int("awake", stats.AwakeFrames),
		logger.Int("drowsy", stats.DrowsyFrames),
		logger.Int("deepSleep", stats.DeepFrames),
		logger.Int("mouthTrips", stats.MouthTrips),
		logger.Int("eyeTrips", stats.EyeTrips),
		logger.Int("vigilance", stats.Vigilance),
		logger.Float64("avgVigilance", stats.AvgVigilance),
		logger.Duration("duration", stats.Duration),
	)
}
