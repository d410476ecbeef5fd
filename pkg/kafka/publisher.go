package kafka

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/siqueiraa/labelflow/pkg/avro"
	"github.com/siqueiraa/labelflow/pkg/config"
	"github.com/siqueiraa/labelflow/pkg/engine"
)

const (
	batchTimeout = 100 * time.Millisecond
	writeTimeout = 10 * time.Second
)

// EventPublisher writes annotation events to Kafka, keyed by episode index
// so one episode's events stay on one partition.
type EventPublisher struct {
	writer   *kafka.Writer
	topic    string
	registry *avro.Registry
}

// NewEventPublisher creates the writer for cfg.EventsTopic. With Avro
// enabled the event schema is registered first.
func NewEventPublisher(cfg config.KafkaConfig) (*EventPublisher, error) {
	if cfg.EventsTopic == "" {
		return nil, fmt.Errorf("kafka.eventsTopic is required")
	}
	var registry *avro.Registry
	if cfg.UseAvro {
		registry = avro.NewRegistry(cfg.SchemaRegistry)
		if err := registry.EnsureSchema(avro.ValueSubject(cfg.EventsTopic), avro.EventSchema); err != nil {
			return nil, err
		}
	}
	return newEventPublisher(cfg.Brokers, cfg.EventsTopic, registry), nil
}

func newEventPublisher(brokers []string, topic string, registry *avro.Registry) *EventPublisher {
	return &EventPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: batchTimeout,
			RequiredAcks: kafka.RequireAll,
		},
		topic:    topic,
		registry: registry,
	}
}

// Publish implements engine.Publisher.
func (p *EventPublisher) Publish(ctx context.Context, ev engine.Event) error {
	payload, err := EncodeEvent(ev, p.registry, p.topic)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   strconv.AppendInt(nil, int64(ev.EpisodeIndex), 10),
		Value: payload,
		Time:  ev.AnnotatedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("[Kafka] publish failed topic=%s episode=%d: %v", p.topic, ev.EpisodeIndex, err)
		return err
	}
	return nil
}

// Close flushes and shuts down the writer.
func (p *EventPublisher) Close() error {
	return p.writer.Close()
}

// JobProducer enqueues annotation jobs on cfg.JobsTopic.
type JobProducer struct {
	writer   *kafka.Writer
	topic    string
	registry *avro.Registry
}

func NewJobProducer(cfg config.KafkaConfig) (*JobProducer, error) {
	if cfg.JobsTopic == "" {
		return nil, fmt.Errorf("kafka.jobsTopic is required")
	}
	jp := &JobProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.JobsTopic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: batchTimeout,
			RequiredAcks: kafka.RequireAll,
		},
		topic: cfg.JobsTopic,
	}
	if cfg.UseAvro {
		jp.registry = avro.NewRegistry(cfg.SchemaRegistry)
		if err := jp.registry.EnsureSchema(avro.ValueSubject(cfg.JobsTopic), avro.JobSchema); err != nil {
			return nil, err
		}
	}
	return jp, nil
}

// Enqueue writes one job per episode index in a single batch.
func (p *JobProducer) Enqueue(ctx context.Context, episodes []int) error {
	msgs := make([]kafka.Message, 0, len(episodes))
	now := time.Now()
	for _, idx := range episodes {
		payload, err := EncodeJob(idx, p.registry, p.topic)
		if err != nil {
			return fmt.Errorf("encode job %d: %w", idx, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   strconv.AppendInt(nil, int64(idx), 10),
			Value: payload,
			Time:  now,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *JobProducer) Close() error {
	return p.writer.Close()
}
