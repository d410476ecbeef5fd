package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/siqueiraa/labelflow/pkg/episode"
)

const (
	annotationsDir = "annotations"
	filePrefix     = "episode_"
	fileSuffix     = ".json"
	dirMode        = 0o755
	fileMode       = 0o644
	jsonIndent     = "    "
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONStore keeps one indented JSON array per episode in
// <dir>/episode_NNNNNN.json, the layout LeRobot tooling reads.
type JSONStore struct {
	dir string
}

func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{dir: dir}
}

// Dir is the annotations directory.
func (s *JSONStore) Dir() string { return s.dir }

// Path returns the file holding an episode's records.
func (s *JSONStore) Path(episodeIndex int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%06d%s", filePrefix, episodeIndex, fileSuffix))
}

func (s *JSONStore) Load(_ context.Context, episodeIndex int) ([]episode.Annotation, bool, error) {
	data, err := os.ReadFile(s.Path(episodeIndex))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var records []episode.Annotation
	if err := jsonAPI.Unmarshal(data, &records); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", s.Path(episodeIndex), err)
	}
	return records, true, nil
}

// Save replaces the episode file. The records are written to a temporary
// file first so a crash never leaves a truncated file behind.
func (s *JSONStore) Save(_ context.Context, episodeIndex int, records []episode.Annotation) error {
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return fmt.Errorf("create annotations dir: %w", err)
	}
	data, err := jsonAPI.MarshalIndent(records, "", jsonIndent)
	if err != nil {
		return fmt.Errorf("encode episode %d: %w", episodeIndex, err)
	}

	path := s.Path(episodeIndex)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), fileMode); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *JSONStore) Episodes(_ context.Context) ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil {
			continue
		}
		out = append(out, idx)
	}
	slices.Sort(out)
	return out, nil
}

func (s *JSONStore) Close() error { return nil }
