package duck

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siqueiraa/labelflow/pkg/episode"
)

// writeEpisode creates a three-frame episode file, rows stored in reverse
// frame order.
func writeEpisode(t *testing.T, s *ParquetSource, path string, episodeIndex int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	q := `COPY (
		SELECT
			i AS frame_index,
			` + strconv.Itoa(episodeIndex) + ` AS episode_index,
			CAST(i AS FLOAT) / 30 AS timestamp,
			[i * 1.0, i * 2.0, 0.5]::DOUBLE[] AS "observation.state",
			[CAST(i AS FLOAT)]::FLOAT[] AS action,
			'pick' AS task,
			{'bytes': 'img'::BLOB, 'path': 'frame.png'} AS "observation.images.top"
		FROM range(3) t(i)
		ORDER BY i DESC
	) TO ` + quoteSQLLiteral(path) + ` (FORMAT PARQUET)`
	_, err := s.db.ExecContext(context.Background(), q)
	require.NoError(t, err)
}

func newSource(t *testing.T, root string, opts Options) *ParquetSource {
	t.Helper()
	s, err := NewParquetSource(root, opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestParquetSourceListAndLoad(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := newSource(t, root, Options{ImagePrefix: "observation.images", MemoryLimit: "256MB"})

	writeEpisode(t, s, filepath.Join(root, "data", "chunk-000", "episode_000001.parquet"), 1)
	writeEpisode(t, s, filepath.Join(root, "data", "chunk-000", "episode_000000.parquet"), 0)
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "README.md"), []byte("x"), 0o600))

	refs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, 0, refs[0].Index)
	assert.Equal(t, 1, refs[1].Index)

	frames, err := s.Load(ctx, refs[1])
	require.NoError(t, err)
	require.Len(t, frames, 3)

	for i, f := range frames {
		assert.Equal(t, i, f.Index, "frames must be ordered by frame_index")
		assert.Equal(t, 1, f.EpisodeIndex)
		assert.Equal(t, []float64{float64(i), float64(2 * i), 0.5}, f.Vectors["observation.state"])
		assert.Equal(t, []float64{float64(i)}, f.Vectors["action"])
		assert.Len(t, f.Vectors["timestamp"], 1)
		assert.NotContains(t, f.Vectors, "task")
		assert.Nil(t, f.Images, "images are skipped unless requested")
	}
}

func TestParquetSourceImages(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := newSource(t, root, Options{ImagePrefix: "observation.images", LoadImages: true})
	path := filepath.Join(root, "data", "chunk-000", "episode_000000.parquet")
	writeEpisode(t, s, path, 0)

	frames, err := s.Load(ctx, episode.Ref{Index: 0, Path: path})
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, []byte("img"), frames[0].Images["observation.images.top"])
}

func TestParquetSourceMissingFile(t *testing.T) {
	s := newSource(t, t.TempDir(), Options{})
	_, err := s.Load(context.Background(), episode.Ref{Path: "/nonexistent/episode_000000.parquet"})
	assert.Error(t, err)

	_, err = s.List(context.Background())
	assert.Error(t, err, "a dataset without a data directory is an error")
}

func TestEpisodeIndexFromName(t *testing.T) {
	idx, ok := episodeIndexFromName("/x/data/chunk-001/episode_001234.parquet")
	assert.True(t, ok)
	assert.Equal(t, 1234, idx)

	_, ok = episodeIndexFromName("/x/data/part-0.parquet")
	assert.False(t, ok)
}

func TestConversions(t *testing.T) {
	v, ok := toVector([]any{float32(1.5), int64(2), true})
	assert.True(t, ok)
	assert.Equal(t, []float64{1.5, 2, 1}, v)

	_, ok = toVector([]any{"a"})
	assert.False(t, ok)
	_, ok = toVector("text")
	assert.False(t, ok)

	b, ok := imageBytes(map[string]any{"bytes": []byte{1, 2}, "path": "p"})
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2}, b)
	_, ok = imageBytes(map[string]any{"path": "p"})
	assert.False(t, ok)

	assert.Equal(t, `"a""b"`, quoteSQLIdentifier(`a"b`))
	assert.Equal(t, `'it''s'`, quoteSQLLiteral("it's"))
}
