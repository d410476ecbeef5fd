// Package faker generates synthetic dual-arm teleoperation episodes for
// demos and tests.
package faker

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand/v2" // weak random is fine for test data

	"github.com/siqueiraa/labelflow/pkg/episode"
)

const (
	StateDim    = 20   // two arms: xyz, rpy, gripper and three spare joints each
	armOffset   = 10   // right arm starts here
	gripperSlot = 6    // within an arm
	stepSize    = 0.01 // per-frame position step, metres
	turnSize    = 0.02 // per-frame rotation step, radians
	switchProb  = 0.05 // chance per frame to pick a new direction
	toggleProb  = 0.02 // chance per frame to open or close a gripper
)

// Options controls Generate.
type Options struct {
	Episodes int
	Frames   int
	Seed     uint64
	StateKey string
}

// Writer stores one generated episode.
type Writer interface {
	WriteEpisode(ctx context.Context, idx int, frames []episode.Frame) (string, error)
}

type arm struct {
	pos, rpy, dir [3]float64
	gripper       float64
}

func (a *arm) pickDirection(rng *rand.Rand) {
	for i := range a.dir {
		a.dir[i] = float64(rng.IntN(3) - 1) // -1, 0 or 1 per axis
	}
}

func (a *arm) step(rng *rand.Rand) {
	if rng.Float64() < switchProb {
		a.pickDirection(rng)
	}
	if rng.Float64() < toggleProb {
		a.gripper = 1 - a.gripper
	}
	for i := range a.pos {
		a.pos[i] += a.dir[i] * stepSize
		a.rpy[i] = math.Remainder(a.rpy[i]+(rng.Float64()*2-1)*turnSize, 2*math.Pi)
	}
}

func (a *arm) write(state []float64) {
	copy(state[0:3], a.pos[:])
	copy(state[3:6], a.rpy[:])
	state[gripperSlot] = a.gripper
}

// Episode returns frames of a random walk for both arms. The same rng state
// always yields the same episode.
func Episode(rng *rand.Rand, idx, frames int, stateKey string) []episode.Frame {
	arms := [2]arm{}
	for i := range arms {
		arms[i].gripper = 1
		arms[i].pickDirection(rng)
	}

	out := make([]episode.Frame, frames)
	for f := range out {
		state := make([]float64, StateDim)
		for i := range arms {
			if f > 0 {
				arms[i].step(rng)
			}
			arms[i].write(state[i*armOffset:])
		}
		out[f] = episode.Frame{
			Index:        f,
			EpisodeIndex: idx,
			Vectors:      map[string][]float64{stateKey: state},
		}
	}
	return out
}

// Generate writes opts.Episodes episodes of opts.Frames frames each.
func Generate(ctx context.Context, w Writer, opts Options) error {
	if opts.Episodes < 1 || opts.Frames < 1 {
		return fmt.Errorf("need at least one episode and one frame, got %d episodes of %d frames", opts.Episodes, opts.Frames)
	}
	if opts.StateKey == "" {
		return fmt.Errorf("state key is required")
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // test data
	for i := range opts.Episodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := w.WriteEpisode(ctx, i, Episode(rng, i, opts.Frames, opts.StateKey))
		if err != nil {
			return fmt.Errorf("episode %d: %w", i, err)
		}
		log.Printf("[Fakegen] episode %d -> %s", i, path)
	}
	return nil
}
