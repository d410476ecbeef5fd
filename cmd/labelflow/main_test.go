package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siqueiraa/labelflow/pkg/episode"
	"github.com/siqueiraa/labelflow/pkg/state"
)

const repoID = "acme/demo"

const gripperYAML = `name: gripper
strict_order: true
operators:
  - type: gripper
    name: grip
    state_key: observation.state
    index: 0
  - type: gripper_summary
    name: grip_state
    gripper_key: grip
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

// writeDataset creates one parquet file per episode with three frames whose
// first state value is the frame index.
func writeDataset(t *testing.T, root string, episodes int) {
	t.Helper()
	dataDir := filepath.Join(root, repoID, "data", "chunk-000")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	defer db.Close()

	for ep := range episodes {
		path := filepath.Join(dataDir, fmt.Sprintf("episode_%06d.parquet", ep))
		q := `COPY (
			SELECT i AS frame_index, [i * 1.0, 0.0]::DOUBLE[] AS "observation.state"
			FROM range(3) t(i)
		) TO '` + path + `' (FORMAT PARQUET)`
		_, err := db.Exec(q)
		require.NoError(t, err)
	}
}

func writePipeline(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gripper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(gripperYAML), 0o600))
	return path
}

func TestOperatorsCommand(t *testing.T) {
	out, err := runCLI(t, "operators")
	require.NoError(t, err)
	for _, typ := range []string{"movement", "velocity_summary", "gripper"} {
		assert.Contains(t, out, typ)
	}
}

func TestPipelineShowDefaultPreset(t *testing.T) {
	out, err := runCLI(t, "--repo-id", repoID, "pipeline", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "dual_arm")
	assert.Contains(t, out, "accel_summary_right")
	assert.Contains(t, out, "mov_left")
}

func TestPipelineShowFromFile(t *testing.T) {
	out, err := runCLI(t, "--repo-id", repoID, "--pipeline", writePipeline(t), "pipeline", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "grip_state")
	assert.NotContains(t, out, "mov_left")
}

func TestUnknownPipeline(t *testing.T) {
	_, err := runCLI(t, "--repo-id", repoID, "--pipeline", "nope", "pipeline", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nope"`)
}

func TestMissingRepoID(t *testing.T) {
	_, err := runCLI(t, "--root", t.TempDir(), "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repo_id")
}

func TestAnnotateThenInspect(t *testing.T) {
	root := t.TempDir()
	writeDataset(t, root, 2)
	pipelinePath := writePipeline(t)
	base := []string{"--root", root, "--repo-id", repoID, "--pipeline", pipelinePath}

	out, err := runCLI(t, append(base, "annotate", "--workers", "2")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Annotated 2 episodes")

	store := state.NewJSONStore(filepath.Join(root, repoID, "annotations"))
	records, ok, err := store.Load(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, records, 3)
	labels := make([]string, len(records))
	for i, rec := range records {
		labels[i], err = rec.Label("grip_state")
		require.NoError(t, err)
		assert.EqualValues(t, i, rec[episode.FrameIndexKey])
	}
	assert.Equal(t, []string{"closed", "open", "open"}, labels)

	out, err = runCLI(t, append(base, "stats", "--key", "grip_state,grip")...)
	require.NoError(t, err)
	assert.Contains(t, out, "2 episodes, 6 frames")
	assert.Contains(t, out, "open=4, closed=2")

	out, err = runCLI(t, append(base, "segment", "--episode", "0", "--task", "pick the cup", "--key", "grip_state")...)
	require.NoError(t, err)
	assert.Contains(t, out, "2 segments")
	assert.Contains(t, out, "pick cup")
}

func TestAnnotateSelectedEpisodes(t *testing.T) {
	root := t.TempDir()
	writeDataset(t, root, 3)
	base := []string{"--root", root, "--repo-id", repoID, "--pipeline", writePipeline(t)}

	out, err := runCLI(t, append(base, "annotate", "--episode", "2")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Annotated 1 episodes")

	store := state.NewJSONStore(filepath.Join(root, repoID, "annotations"))
	got, err := store.Episodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2}, got)
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"x"}, {"1", "2"}}, []columnAlignment{alignLeft, alignRight})
	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Contains(t, out, "A")
	assert.Contains(t, out, "x")
	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestSynthThenAnnotateDefaultPreset(t *testing.T) {
	root := t.TempDir()
	base := []string{"--root", root, "--repo-id", repoID}

	out, err := runCLI(t, append(base, "synth", "--episodes", "2", "--frames", "30")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 2 episodes of 30 frames")

	out, err = runCLI(t, append(base, "annotate")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Annotated 2 episodes with dual_arm")

	store := state.NewJSONStore(filepath.Join(root, repoID, "annotations"))
	records, ok, err := store.Load(context.Background(), 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, records, 30)
	for _, key := range []string{"pos_left", "dir_right", "mov_left", "vel_right", "accel_left", "mov_summary_right", "vel_summary_left", "accel_summary_right"} {
		assert.Contains(t, records[29], key)
	}

	out, err = runCLI(t, append(base, "segment", "--episode", "1", "--key", "mov_summary_left")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Episode 1: 30 frames")
}

func TestAnnotateWritesFinalCheckpoint(t *testing.T) {
	root := t.TempDir()
	writeDataset(t, root, 1)

	stateDir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cfg := fmt.Sprintf(`dataset:
  root: %s
  repo_id: %s
state:
  backend: badger
  badger:
    path: %s
    checkpoint:
      enabled: true
      interval: 1h
`, root, repoID, filepath.Join(stateDir, "badger"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	_, err := runCLI(t, "--config", cfgPath, "--pipeline", writePipeline(t), "annotate")
	require.NoError(t, err)

	// written on shutdown, long before the first interval
	info, err := os.Stat(filepath.Join(stateDir, "acme_demo.badger.gz"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
