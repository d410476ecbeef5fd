package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/siqueiraa/labelflow/pkg/episode"
	"github.com/siqueiraa/labelflow/pkg/operator"
)

const queueSize = 16 // per-worker episode queue

// EpisodeSource lists and loads recorded episodes.
type EpisodeSource interface {
	List(ctx context.Context) ([]episode.Ref, error)
	Load(ctx context.Context, ref episode.Ref) ([]episode.Frame, error)
}

// Store persists annotation records per episode. Load reports false when
// the episode has never been annotated.
type Store interface {
	Load(ctx context.Context, episodeIndex int) ([]episode.Annotation, bool, error)
	Save(ctx context.Context, episodeIndex int, records []episode.Annotation) error
}

// Publisher receives one Event per annotated episode.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Event summarizes one annotated episode.
type Event struct {
	RunID        string                    `json:"run_id"`
	RepoID       string                    `json:"repo_id"`
	Pipeline     string                    `json:"pipeline"`
	EpisodeIndex int                       `json:"episode_index"`
	Frames       int                       `json:"frames"`
	Operators    []string                  `json:"operators"`
	Labels       map[string]map[string]int `json:"labels"`
	Resumed      bool                      `json:"resumed"`
	AnnotatedAt  time.Time                 `json:"annotated_at"`
}

// Options configures an Annotator.
type Options struct {
	RepoID    string
	Pipeline  string
	Workers   int
	Publisher Publisher // optional
}

// Annotator runs one operator list over the episodes of a dataset.
type Annotator struct {
	source    EpisodeSource
	store     Store
	publisher Publisher
	ops       []operator.Operator
	repoID    string
	pipeline  string
	workers   int
	runID     string
}

func NewAnnotator(src EpisodeSource, store Store, ops []operator.Operator, opts Options) *Annotator {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Annotator{
		source:    src,
		store:     store,
		publisher: opts.Publisher,
		ops:       ops,
		repoID:    opts.RepoID,
		pipeline:  opts.Pipeline,
		workers:   workers,
		runID:     uuid.NewString(),
	}
}

// RunID identifies this annotator in published events.
func (a *Annotator) RunID() string { return a.runID }

// workerFor routes an episode to a fixed worker so one episode never has
// two writers within a run.
func workerFor(episodeIndex, workers int) int {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(episodeIndex)) //nolint:gosec // bit pattern only
	return int(xxhash.Sum64(b[:]) % uint64(workers))          //nolint:gosec // workers >= 1
}

// AnnotateAll annotates every episode the source lists and returns how many
// succeeded. Failed episodes do not stop the others; their errors are
// returned joined. Cancelling ctx stops dispatching new episodes.
func (a *Annotator) AnnotateAll(ctx context.Context) (int, error) {
	refs, err := a.source.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list episodes: %w", err)
	}
	log.Printf("[Annotator] run=%s: %d episodes, %d operators, %d workers",
		a.runID, len(refs), len(a.ops), a.workers)

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
		done atomic.Int64
	)
	queues := make([]chan episode.Ref, a.workers)
	for i := range queues {
		queues[i] = make(chan episode.Ref, queueSize)
		q := queues[i]
		g.Go(func() error {
			for ref := range q {
				if ctx.Err() != nil {
					continue
				}
				if _, err := a.AnnotateEpisode(ctx, ref); err != nil {
					log.Printf("[Annotator] %s failed: %v", ref, err)
					mu.Lock()
					errs = append(errs, fmt.Errorf("%s: %w", ref, err))
					mu.Unlock()
					continue
				}
				done.Add(1)
			}
			return nil
		})
	}

dispatch:
	for _, ref := range refs {
		select {
		case <-ctx.Done():
			break dispatch
		case queues[workerFor(ref.Index, a.workers)] <- ref:
		}
	}
	for _, q := range queues {
		close(q)
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	n := int(done.Load())
	log.Printf("[Annotator] run=%s: annotated %d/%d episodes", a.runID, n, len(refs))
	return n, errors.Join(errs...)
}

// AnnotateEpisode loads one episode and its prior annotations, runs the
// operators, saves the records and publishes the resulting event.
func (a *Annotator) AnnotateEpisode(ctx context.Context, ref episode.Ref) (Event, error) {
	start := time.Now()

	frames, err := a.source.Load(ctx, ref)
	if err != nil {
		return Event{}, fmt.Errorf("load frames: %w", err)
	}
	prior, resumed, err := a.store.Load(ctx, ref.Index)
	if err != nil {
		return Event{}, fmt.Errorf("load annotations: %w", err)
	}
	if !resumed {
		prior = episode.NewAnnotations(len(frames))
	}

	records, err := Run(frames, prior, a.ops)
	if err != nil {
		return Event{}, err
	}
	if err := a.store.Save(ctx, ref.Index, records); err != nil {
		return Event{}, fmt.Errorf("save annotations: %w", err)
	}

	ev := a.newEvent(ref, records, resumed)
	if a.publisher != nil {
		if err := a.publisher.Publish(ctx, ev); err != nil {
			return ev, fmt.Errorf("publish event: %w", err)
		}
	}
	log.Printf("[Annotator] episode=%d frames=%d resumed=%t took=%v",
		ref.Index, len(frames), resumed, time.Since(start))
	return ev, nil
}

func (a *Annotator) newEvent(ref episode.Ref, records []episode.Annotation, resumed bool) Event {
	ev := Event{
		RunID:        a.runID,
		RepoID:       a.repoID,
		Pipeline:     a.pipeline,
		EpisodeIndex: ref.Index,
		Frames:       len(records),
		Operators:    make([]string, 0, len(a.ops)),
		Resumed:      resumed,
		AnnotatedAt:  time.Now().UTC(),
	}
	for _, op := range a.ops {
		ev.Operators = append(ev.Operators, op.Name())
	}
	ev.Labels = LabelCounts(records, ev.Operators)
	return ev
}

// LabelCounts tallies the string values found under keys. Keys holding no
// labels are left out.
func LabelCounts(records []episode.Annotation, keys []string) map[string]map[string]int {
	out := map[string]map[string]int{}
	for _, key := range keys {
		for _, rec := range records {
			label, ok := rec[key].(string)
			if !ok {
				continue
			}
			if out[key] == nil {
				out[key] = map[string]int{}
			}
			out[key][label]++
		}
	}
	return out
}
