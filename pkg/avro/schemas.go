package avro

// EventSchema describes one annotated-episode event.
const EventSchema = `{
  "type": "record",
  "name": "AnnotationEvent",
  "namespace": "labelflow",
  "fields": [
    {"name": "run_id", "type": "string"},
    {"name": "repo_id", "type": "string"},
    {"name": "pipeline", "type": "string"},
    {"name": "episode_index", "type": "long"},
    {"name": "frames", "type": "long"},
    {"name": "operators", "type": {"type": "array", "items": "string"}},
    {"name": "labels", "type": {"type": "map", "values": {"type": "map", "values": "long"}}},
    {"name": "resumed", "type": "boolean"},
    {"name": "annotated_at", "type": "long"}
  ]
}`

// JobSchema describes an annotation request for one episode.
const JobSchema = `{
  "type": "record",
  "name": "AnnotationJob",
  "namespace": "labelflow",
  "fields": [
    {"name": "episode_index", "type": "long"}
  ]
}`

// ValueSubject is the registry subject for a topic's message values.
func ValueSubject(topic string) string { return topic + "-value" }
