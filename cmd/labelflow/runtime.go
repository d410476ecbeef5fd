package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/siqueiraa/labelflow/pkg/config"
	"github.com/siqueiraa/labelflow/pkg/duck"
	"github.com/siqueiraa/labelflow/pkg/engine"
	"github.com/siqueiraa/labelflow/pkg/episode"
	"github.com/siqueiraa/labelflow/pkg/kafka"
	"github.com/siqueiraa/labelflow/pkg/state"
)

// runtime holds the components one annotate or worker run needs.
type runtime struct {
	source    *duck.ParquetSource
	store     state.Manager
	publisher *kafka.EventPublisher
	closers   []func() error
}

type runtimeOptions struct {
	loadImages bool
	publish    bool
}

func openRuntime(ctx context.Context, cfg *config.AppConfig, opts runtimeOptions) (*runtime, error) {
	rt := &runtime{}

	src, err := duck.NewParquetSource(cfg.Dataset.Dir(), duck.Options{
		ImagePrefix: cfg.Dataset.ImagePrefix,
		LoadImages:  opts.loadImages,
		MemoryLimit: cfg.Engine.DuckDBMemory,
	})
	if err != nil {
		return nil, err
	}
	rt.source = src
	rt.closers = append(rt.closers, src.Close)

	store, err := state.Open(cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open state: %w", err)
	}
	rt.store = store
	rt.closers = append(rt.closers, store.Close)

	if bs, ok := store.(*state.BadgerStore); ok && cfg.State.Badger.Checkpoint.Enabled {
		rt.startCheckpointer(ctx, bs, cfg.State.Badger.Checkpoint.Interval)
	}

	if opts.publish && cfg.Kafka.Enabled() && cfg.Kafka.EventsTopic != "" {
		pub, err := kafka.NewEventPublisher(cfg.Kafka)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("create event publisher: %w", err)
		}
		rt.publisher = pub
		rt.closers = append(rt.closers, pub.Close)
		log.Printf("[Kafka] Publishing annotation events to %s", cfg.Kafka.EventsTopic)
	}
	return rt, nil
}

// startCheckpointer runs the periodic checkpointer until Close. Its closer
// is registered after the store's, so the final checkpoint is written
// before the store is closed.
func (r *runtime) startCheckpointer(ctx context.Context, bs *state.BadgerStore, interval time.Duration) {
	cpCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		bs.RunCheckpointer(cpCtx, interval)
	}()
	r.closers = append(r.closers, func() error {
		cancel()
		<-done
		return nil
	})
}

// options fills engine.Options, leaving Publisher nil when no publisher is
// configured.
func (r *runtime) options(cfg *config.AppConfig, pipelineName string, workers int) engine.Options {
	opts := engine.Options{
		RepoID:   cfg.Dataset.RepoID,
		Pipeline: pipelineName,
		Workers:  workers,
	}
	if r.publisher != nil {
		opts.Publisher = r.publisher
	}
	return opts
}

// Close releases components in reverse order of opening.
func (r *runtime) Close() error {
	var errs []error
	for _, c := range slices.Backward(r.closers) {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// selectedSource restricts an episode source to the given indexes.
type selectedSource struct {
	engine.EpisodeSource
	indexes map[int]struct{}
}

func selectEpisodes(src engine.EpisodeSource, indexes []int) engine.EpisodeSource {
	if len(indexes) == 0 {
		return src
	}
	set := make(map[int]struct{}, len(indexes))
	for _, i := range indexes {
		set[i] = struct{}{}
	}
	return &selectedSource{EpisodeSource: src, indexes: set}
}

func (s *selectedSource) List(ctx context.Context) ([]episode.Ref, error) {
	refs, err := s.EpisodeSource.List(ctx)
	if err != nil {
		return nil, err
	}
	out := refs[:0]
	for _, ref := range refs {
		if _, ok := s.indexes[ref.Index]; ok {
			out = append(out, ref)
		}
	}
	return out, nil
}
