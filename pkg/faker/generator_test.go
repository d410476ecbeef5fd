package faker

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/siqueiraa/labelflow/pkg/episode"
)

type memWriter struct {
	episodes map[int][]episode.Frame
	fail     int
}

func (m *memWriter) WriteEpisode(_ context.Context, idx int, frames []episode.Frame) (string, error) {
	if idx == m.fail {
		return "", errors.New("disk full")
	}
	m.episodes[idx] = frames
	return "mem", nil
}

func TestEpisodeShape(t *testing.T) {
	frames := Episode(rand.New(rand.NewPCG(1, 2)), 3, 50, "observation.state")
	if len(frames) != 50 {
		t.Fatalf("Expected 50 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.Index != i || f.EpisodeIndex != 3 {
			t.Errorf("frame %d: index=%d episode=%d", i, f.Index, f.EpisodeIndex)
		}
		state := f.Vectors["observation.state"]
		if len(state) != StateDim {
			t.Fatalf("frame %d: state has %d values", i, len(state))
		}
		for _, g := range []float64{state[gripperSlot], state[armOffset+gripperSlot]} {
			if g != 0 && g != 1 {
				t.Errorf("frame %d: gripper value %v", i, g)
			}
		}
	}

	// first frame starts at the origin with open grippers
	first := frames[0].Vectors["observation.state"]
	if first[0] != 0 || first[gripperSlot] != 1 {
		t.Errorf("Unexpected first frame %v", first)
	}
}

func TestEpisodeDeterministic(t *testing.T) {
	a := Episode(rand.New(rand.NewPCG(7, 7)), 0, 20, "s")
	b := Episode(rand.New(rand.NewPCG(7, 7)), 0, 20, "s")
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed, different episodes (-a +b):\n%s", diff)
	}
}

func TestGenerate(t *testing.T) {
	w := &memWriter{episodes: map[int][]episode.Frame{}, fail: -1}
	if err := Generate(context.Background(), w, Options{Episodes: 3, Frames: 5, Seed: 1, StateKey: "s"}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(w.episodes) != 3 {
		t.Fatalf("Expected 3 episodes, got %d", len(w.episodes))
	}
	for idx, frames := range w.episodes {
		if len(frames) != 5 || frames[0].EpisodeIndex != idx {
			t.Errorf("episode %d: %d frames", idx, len(frames))
		}
	}
}

func TestGenerateErrors(t *testing.T) {
	w := &memWriter{episodes: map[int][]episode.Frame{}, fail: 1}
	if err := Generate(context.Background(), w, Options{Episodes: 0, Frames: 5, StateKey: "s"}); err == nil {
		t.Error("Expected error for zero episodes")
	}
	if err := Generate(context.Background(), w, Options{Episodes: 1, Frames: 5}); err == nil {
		t.Error("Expected error for missing state key")
	}
	if err := Generate(context.Background(), w, Options{Episodes: 3, Frames: 5, StateKey: "s"}); err == nil {
		t.Error("Expected write error to be returned")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Generate(ctx, w, Options{Episodes: 3, Frames: 5, StateKey: "s"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
