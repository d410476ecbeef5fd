package kafka

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/siqueiraa/labelflow/pkg/avro"
	"github.com/siqueiraa/labelflow/pkg/engine"
)

var json = jsoniter.ConfigFastest

// eventToNative maps an event onto the Avro event record.
func eventToNative(ev engine.Event) map[string]any {
	ops := make([]any, len(ev.Operators))
	for i, op := range ev.Operators {
		ops[i] = op
	}
	labels := make(map[string]any, len(ev.Labels))
	for key, counts := range ev.Labels {
		inner := make(map[string]any, len(counts))
		for label, n := range counts {
			inner[label] = int64(n)
		}
		labels[key] = inner
	}
	return map[string]any{
		"run_id":        ev.RunID,
		"repo_id":       ev.RepoID,
		"pipeline":      ev.Pipeline,
		"episode_index": int64(ev.EpisodeIndex),
		"frames":        int64(ev.Frames),
		"operators":     ops,
		"labels":        labels,
		"resumed":       ev.Resumed,
		"annotated_at":  ev.AnnotatedAt.UnixMilli(),
	}
}

// EncodeEvent serializes ev as JSON, or as Avro when registry is set.
func EncodeEvent(ev engine.Event, registry *avro.Registry, topic string) ([]byte, error) {
	if registry != nil {
		payload, err := registry.Encode(avro.ValueSubject(topic), eventToNative(ev))
		if err != nil {
			return nil, fmt.Errorf("avro encode failed: %w", err)
		}
		return payload, nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("json marshal failed: %w", err)
	}
	return payload, nil
}

type jobMessage struct {
	EpisodeIndex *int `json:"episode_index"`
}

// DecodeJob reads the episode index out of a job message.
func DecodeJob(payload []byte, registry *avro.Registry) (int, error) {
	if registry != nil {
		m, err := registry.Decode(payload)
		if err != nil {
			return 0, err
		}
		switch v := m["episode_index"].(type) {
		case int64:
			return int(v), nil
		case int:
			return v, nil
		default:
			return 0, fmt.Errorf("job episode_index: unexpected %T", v)
		}
	}

	var msg jobMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return 0, fmt.Errorf("decode job: %w", err)
	}
	if msg.EpisodeIndex == nil {
		return 0, fmt.Errorf("job has no episode_index")
	}
	if *msg.EpisodeIndex < 0 {
		return 0, fmt.Errorf("job episode_index %d is negative", *msg.EpisodeIndex)
	}
	return *msg.EpisodeIndex, nil
}

// EncodeJob is the inverse of DecodeJob, used to enqueue work.
func EncodeJob(episodeIndex int, registry *avro.Registry, topic string) ([]byte, error) {
	if registry != nil {
		return registry.Encode(avro.ValueSubject(topic), map[string]any{"episode_index": int64(episodeIndex)})
	}
	return json.Marshal(jobMessage{EpisodeIndex: &episodeIndex})
}
