package replay

import (
	"fmt"
	"io"
	"math/rand/v2"
)

// Ratio ranges used by the generator.
const (
	openEARMin   = 0.28
	openEARMax   = 0.36
	closedEARMin = 0.08
	closedEARMax = 0.20
	restMARMin   = 0.10
	restMARMax   = 0.35
	yawnMARMin   = 0.60
	yawnMARMax   = 0.95
)

// Episode lengths in frames.
const (
	blinkFrames    = 3
	microSleepMin  = 25
	microSleepSpan = 30
	yawnMin        = 40
	yawnSpan       = 30
)

// Generator chances per frame of starting an episode.
const (
	blinkChance = 0.03
	sleepChance = 0.004
	yawnChance  = 0.004
)

// Generate writes frames synthetic ratio records to w: mostly open eyes
// with blinks, occasional micro-sleeps long enough to alert, and yawns.
// The same seed always yields the same sequence.
func Generate(w io.Writer, frames int, seed uint64) error {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	between := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

	closedLeft, yawnLeft := 0, 0
	for i := 0; i < frames; i++ {
		if closedLeft == 0 {
			switch p := rng.Float64(); {
			case p < sleepChance:
				closedLeft = microSleepMin + rng.IntN(microSleepSpan)
			case p < sleepChance+blinkChance:
				closedLeft = blinkFrames
			}
		}
		if yawnLeft == 0 && rng.Float64() < yawnChance {
			yawnLeft = yawnMin + rng.IntN(yawnSpan)
		}

		ear := between(openEARMin, openEARMax)
		if closedLeft > 0 {
			ear = between(closedEARMin, closedEARMax)
			closedLeft--
		}
		mar := between(restMARMin, restMARMax)
		if yawnLeft > 0 {
			mar = between(yawnMARMin, yawnMARMax)
			yawnLeft--
		}

		if _, err := fmt.Fprintf(w, "{\"ear\":%.4f,\"mar\":%.4f}\n", ear, mar); err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	return nil
}
