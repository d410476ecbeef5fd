package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/siqueiraa/labelflow/pkg/avro"
	"github.com/siqueiraa/labelflow/pkg/config"
	"github.com/siqueiraa/labelflow/pkg/engine"
	"github.com/siqueiraa/labelflow/pkg/state"
)

const (
	maxInt32    = 0x7FFFFFFF
	pollTimeout = 500 * time.Millisecond
)

// JobConsumer reads annotation jobs with manual commits. When an offset
// store is given, committed offsets are also saved there and used as the
// starting point when partitions are assigned.
type JobConsumer struct {
	c        *ck.Consumer
	topic    string
	registry *avro.Registry
	offsets  state.OffsetStore
}

// NewJobConsumer subscribes to cfg.JobsTopic as cfg.GroupID. offsets may be
// nil.
func NewJobConsumer(cfg config.KafkaConfig, offsets state.OffsetStore) (*JobConsumer, error) {
	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":               strings.Join(cfg.Brokers, ","),
		"group.id":                        cfg.GroupID,
		"enable.auto.commit":              false,
		"auto.offset.reset":               "earliest",
		"go.application.rebalance.enable": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create confluent consumer: %w", err)
	}

	jc := &JobConsumer{c: c, topic: cfg.JobsTopic, offsets: offsets}
	if cfg.UseAvro {
		jc.registry = avro.NewRegistry(cfg.SchemaRegistry)
	}

	err = c.SubscribeTopics([]string{cfg.JobsTopic}, func(con *ck.Consumer, ev ck.Event) error {
		switch e := ev.(type) {
		case ck.AssignedPartitions:
			return con.Assign(assignOffsets(jc.topic, e.Partitions, jc.offsets))
		case ck.RevokedPartitions:
			return con.Unassign()
		default:
			return nil
		}
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}
	return jc, nil
}

// assignOffsets starts each partition after its stored offset, or from the
// group's committed position when none is stored.
func assignOffsets(topic string, parts []ck.TopicPartition, offsets state.OffsetStore) []ck.TopicPartition {
	if offsets == nil {
		return parts
	}
	for i := range parts {
		p := int(parts[i].Partition)
		off, ok, err := offsets.GetOffset(topic, p)
		switch {
		case err != nil:
			log.Printf("[Kafka] Offset lookup failed for %s/%d: %v", topic, p, err)
		case ok:
			log.Printf("[Kafka] Resuming %s/%d after offset %d", topic, p, off)
			parts[i].Offset = ck.Offset(off + 1)
		default:
			log.Printf("[Kafka] No stored offset for %s/%d", topic, p)
		}
	}
	return parts
}

// Next implements engine.JobSource. Undecodable messages are logged and
// skipped.
func (c *JobConsumer) Next(ctx context.Context) (engine.Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return engine.Job{}, err
		}
		msg, err := c.c.ReadMessage(pollTimeout)
		if err != nil {
			var ke ck.Error
			if errors.As(err, &ke) && ke.Code() == ck.ErrTimedOut {
				continue
			}
			return engine.Job{}, err
		}

		job := engine.Job{
			Partition: int(msg.TopicPartition.Partition),
			Offset:    int64(msg.TopicPartition.Offset),
		}
		idx, err := DecodeJob(msg.Value, c.registry)
		if err != nil {
			log.Printf("[Kafka] Skipping job partition=%d offset=%d: %v", job.Partition, job.Offset, err)
			continue
		}
		job.EpisodeIndex = idx
		return job, nil
	}
}

// Commit implements engine.JobSource.
func (c *JobConsumer) Commit(job engine.Job) error {
	if job.Partition > maxInt32 {
		return fmt.Errorf("partition %d exceeds int32 limit", job.Partition)
	}
	_, err := c.c.CommitOffsets([]ck.TopicPartition{{
		Topic:     &c.topic,
		Partition: int32(job.Partition), //nolint:gosec // bounded above
		Offset:    ck.Offset(job.Offset + 1),
	}})
	if err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	if c.offsets != nil {
		if err := c.offsets.SaveOffset(c.topic, job.Partition, job.Offset); err != nil {
			return fmt.Errorf("save offset: %w", err)
		}
	}
	return nil
}

func (c *JobConsumer) Close() error { return c.c.Close() }
