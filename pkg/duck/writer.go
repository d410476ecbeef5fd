package duck

import (
	"context"
	"fmt"
	"log"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/siqueiraa/labelflow/pkg/episode"
)

const episodesPerChunk = 1000

// EpisodePath is where episode idx lives under root:
// data/chunk-000/episode_000000.parquet.
func EpisodePath(root string, idx int) string {
	return filepath.Join(root, dataDir,
		fmt.Sprintf("chunk-%03d", idx/episodesPerChunk),
		fmt.Sprintf("%s%06d%s", episodeFilePrefix, idx, parquetExt))
}

// WriteEpisode writes frames as one parquet file with a frame_index,
// an episode_index and one DOUBLE[] column per vector key. Every frame must
// carry the same vector keys. Images are not written.
func (s *ParquetSource) WriteEpisode(ctx context.Context, idx int, frames []episode.Frame) (string, error) {
	if len(frames) == 0 {
		return "", fmt.Errorf("episode %d has no frames", idx)
	}
	keys := slices.Sorted(maps.Keys(frames[0].Vectors))

	var rows strings.Builder
	for i, f := range frames {
		if len(f.Vectors) != len(keys) {
			return "", fmt.Errorf("episode %d frame %d: %d vector columns, want %d", idx, i, len(f.Vectors), len(keys))
		}
		if i > 0 {
			rows.WriteString(",\n")
		}
		fmt.Fprintf(&rows, "(%d, %d", i, idx)
		for _, k := range keys {
			v, ok := f.Vectors[k]
			if !ok {
				return "", &episode.KeyError{Source: episode.SourceFrame, Key: k}
			}
			rows.WriteString(", ")
			rows.WriteString(listLiteral(v))
		}
		rows.WriteByte(')')
	}

	cols := []string{frameIndexCol, episodeIndexCol}
	for _, k := range keys {
		cols = append(cols, quoteSQLIdentifier(k))
	}

	path := EpisodePath(s.root, idx)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create chunk dir: %w", err)
	}
	q := fmt.Sprintf("COPY (SELECT * FROM (VALUES %s) t(%s) ORDER BY %s) TO %s (FORMAT PARQUET)",
		rows.String(), strings.Join(cols, ", "), frameIndexCol, quoteSQLLiteral(path))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	log.Printf("[DuckDB] Wrote episode %d (%d frames) to %s", idx, len(frames), path)
	return path, nil
}

func listLiteral(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]::DOUBLE[]"
}
