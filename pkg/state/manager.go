// Package state persists annotation records and consumer offsets.
package state

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/siqueiraa/labelflow/pkg/config"
	"github.com/siqueiraa/labelflow/pkg/episode"
)

// Manager stores one annotation record list per episode.
type Manager interface {
	Load(ctx context.Context, episodeIndex int) ([]episode.Annotation, bool, error)
	Save(ctx context.Context, episodeIndex int, records []episode.Annotation) error
	// Episodes lists the annotated episode indexes in ascending order.
	Episodes(ctx context.Context) ([]int, error)
	Close() error
}

// OffsetStore keeps the last processed offset per topic partition.
type OffsetStore interface {
	SaveOffset(topic string, partition int, offset int64) error
	GetOffset(topic string, partition int) (int64, bool, error)
}

// Open returns the backend named by cfg.State.Backend.
func Open(cfg *config.AppConfig) (Manager, error) {
	switch cfg.State.Backend {
	case config.BackendJSON, "":
		return NewJSONStore(filepath.Join(cfg.Dataset.Dir(), annotationsDir)), nil
	case config.BackendBadger:
		return NewBadgerStore(cfg.Dataset.RepoID, cfg.State.Badger)
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}
