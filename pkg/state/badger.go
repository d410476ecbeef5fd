package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/siqueiraa/labelflow/pkg/config"
	"github.com/siqueiraa/labelflow/pkg/episode"
)

const (
	annotationPrefix = "ann:"
	offsetPrefix     = "offset:"
	maxPendingWrites = 256 // badger Load batch size on restore
)

// BadgerStore keeps annotations and Kafka offsets in one embedded BadgerDB.
// The database can be checkpointed to a local backup file and to S3.
type BadgerStore struct {
	db   *badger.DB
	path string
	name string
	cfg  config.BadgerConfig
}

// storedValue wraps every payload with the time it was written.
type storedValue struct {
	Timestamp int64  `json:"ts"`
	Payload   []byte `json:"payload"`
}

// NewBadgerStore opens (or creates) the database at cfg.Path. name keys the
// S3 checkpoint object. An empty directory is seeded from the latest S3
// checkpoint when one is configured.
func NewBadgerStore(name string, cfg config.BadgerConfig) (*BadgerStore, error) {
	if err := os.MkdirAll(cfg.Path, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create state path: %w", err)
	}
	entries, err := os.ReadDir(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state path: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	st := &BadgerStore{db: db, path: cfg.Path, name: checkpointName(name), cfg: cfg}

	if len(entries) == 0 {
		if err := st.restoreFromS3(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to restore checkpoint: %w", err)
		}
	} else {
		log.Printf("[State] Skipping checkpoint restore for %s: directory is not empty", st.name)
	}
	return st, nil
}

func annotationKey(episodeIndex int) []byte {
	return fmt.Appendf(nil, "%s%06d", annotationPrefix, episodeIndex)
}

func offsetKey(topic string, partition int) []byte {
	return fmt.Appendf(nil, "%s%s:%d", offsetPrefix, topic, partition)
}

func (s *BadgerStore) put(key, payload []byte) error {
	data, err := jsonAPI.Marshal(storedValue{Timestamp: time.Now().Unix(), Payload: payload})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (s *BadgerStore) get(key []byte) (storedValue, bool, error) {
	var sv storedValue
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return jsonAPI.Unmarshal(v, &sv)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return sv, false, nil
	}
	if err != nil {
		return sv, false, err
	}
	return sv, true, nil
}

func (s *BadgerStore) Load(_ context.Context, episodeIndex int) ([]episode.Annotation, bool, error) {
	sv, ok, err := s.get(annotationKey(episodeIndex))
	if err != nil || !ok {
		return nil, false, err
	}
	var records []episode.Annotation
	if err := jsonAPI.Unmarshal(sv.Payload, &records); err != nil {
		return nil, false, fmt.Errorf("decode episode %d: %w", episodeIndex, err)
	}
	return records, true, nil
}

func (s *BadgerStore) Save(_ context.Context, episodeIndex int, records []episode.Annotation) error {
	payload, err := jsonAPI.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode episode %d: %w", episodeIndex, err)
	}
	return s.put(annotationKey(episodeIndex), payload)
}

func (s *BadgerStore) Episodes(_ context.Context) ([]int, error) {
	var out []int
	err := s.forEachKey(annotationPrefix, func(key string) error {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("bad annotation key %q: %w", key, err)
		}
		out = append(out, idx)
		return nil
	})
	return out, err
}

// forEachKey visits every key under prefix in order, passing it without the
// prefix.
func (s *BadgerStore) forEachKey(prefix string, fn func(key string) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := fn(string(it.Item().Key())[len(prefix):]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) SaveOffset(topic string, partition int, offset int64) error {
	return s.put(offsetKey(topic, partition), strconv.AppendInt(nil, offset, 10))
}

// GetOffset reports false when no offset was stored for the partition.
func (s *BadgerStore) GetOffset(topic string, partition int) (int64, bool, error) {
	sv, ok, err := s.get(offsetKey(topic, partition))
	if err != nil {
		return 0, false, fmt.Errorf("failed to get offset for %s/%d: %w", topic, partition, err)
	}
	if !ok {
		return 0, false, nil
	}
	off, err := strconv.ParseInt(string(sv.Payload), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("bad offset for %s/%d: %w", topic, partition, err)
	}
	return off, true, nil
}

// Stats counts keys per kind ("ann", "offset").
func (s *BadgerStore) Stats() (map[string]int, error) {
	stats := make(map[string]int)
	err := s.forEachKey("", func(key string) error {
		kind, _, _ := strings.Cut(key, ":")
		stats[kind]++
		return nil
	})
	return stats, err
}

// Backup streams a full backup of the database to w.
func (s *BadgerStore) Backup(w io.Writer) error {
	_, err := s.db.Backup(w, 0)
	return err
}

// Restore loads a stream written by Backup into the database.
func (s *BadgerStore) Restore(r io.Reader) error {
	return s.db.Load(r, maxPendingWrites)
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
