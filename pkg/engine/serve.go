package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/siqueiraa/labelflow/pkg/episode"
)

// Job asks for one episode to be annotated. Partition and Offset locate the
// message it came from.
type Job struct {
	EpisodeIndex int
	Partition    int
	Offset       int64
}

// JobSource yields jobs until ctx is done. Commit acknowledges a job once
// its episode has been annotated and published.
type JobSource interface {
	Next(ctx context.Context) (Job, error)
	Commit(job Job) error
}

// ErrUnknownEpisode is returned for jobs naming an episode the source does
// not list.
var ErrUnknownEpisode = errors.New("unknown episode")

// Serve annotates jobs one at a time until ctx is done.
//
// Commits are cumulative per partition, so once a job fails its partition
// stops committing for the rest of the run: later jobs there are still
// annotated but stay uncommitted, and after a restart delivery resumes at
// the failed job. Jobs naming an unknown episode can never succeed and are
// committed as skipped.
func (a *Annotator) Serve(ctx context.Context, jobs JobSource) error {
	refs, err := a.refsByIndex(ctx)
	if err != nil {
		return err
	}
	log.Printf("[Annotator] run=%s: serving jobs for %d episodes", a.runID, len(refs))

	held := map[int]int64{} // partition -> offset of its first failed job

	for {
		job, err := jobs.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("next job: %w", err)
		}

		ref, ok := refs[job.EpisodeIndex]
		if !ok {
			// the dataset may have grown since start-up
			if refs, err = a.refsByIndex(ctx); err != nil {
				return err
			}
			ref, ok = refs[job.EpisodeIndex]
		}

		switch {
		case !ok:
			log.Printf("[Annotator] job partition=%d offset=%d: episode %d: %v, skipping",
				job.Partition, job.Offset, job.EpisodeIndex, ErrUnknownEpisode)
		default:
			if _, err := a.AnnotateEpisode(ctx, ref); err != nil {
				log.Printf("[Annotator] job partition=%d offset=%d: %s: %v", job.Partition, job.Offset, ref, err)
				if _, blocked := held[job.Partition]; !blocked {
					held[job.Partition] = job.Offset
					log.Printf("[Annotator] partition=%d: holding commits from offset %d", job.Partition, job.Offset)
				}
				continue
			}
		}

		if from, blocked := held[job.Partition]; blocked {
			log.Printf("[Annotator] job partition=%d offset=%d: done, not committed (held from offset %d)",
				job.Partition, job.Offset, from)
			continue
		}
		if err := jobs.Commit(job); err != nil {
			return fmt.Errorf("commit job: %w", err)
		}
	}
}

func (a *Annotator) refsByIndex(ctx context.Context) (map[int]episode.Ref, error) {
	list, err := a.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	refs := make(map[int]episode.Ref, len(list))
	for _, r := range list {
		refs[r.Index] = r
	}
	return refs, nil
}
