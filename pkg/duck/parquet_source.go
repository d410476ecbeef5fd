package duck

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/marcboeker/go-duckdb/v2"

	"github.com/siqueiraa/labelflow/pkg/episode"
)

const (
	dataDir           = "data"
	parquetExt        = ".parquet"
	episodeFilePrefix = "episode_"
	frameIndexCol     = "frame_index"
	episodeIndexCol   = "episode_index"
	imageBytesField   = "bytes"
)

// Options tunes a ParquetSource.
type Options struct {
	// ImagePrefix marks struct image columns, e.g. "observation.images".
	ImagePrefix string
	// LoadImages decodes image columns into Frame.Images; otherwise they
	// are not read at all.
	LoadImages bool
	// MemoryLimit is passed to DuckDB's memory_limit, e.g. "512MB".
	MemoryLimit string
}

// ParquetSource reads LeRobot episodes (data/chunk-*/episode_*.parquet)
// through an in-memory DuckDB.
type ParquetSource struct {
	db   *sql.DB
	mu   sync.Mutex
	root string
	opts Options
}

// quoteSQLIdentifier quotes a column name for DuckDB.
func quoteSQLIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// quoteSQLLiteral quotes a string literal such as a file path.
func quoteSQLLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}

// NewParquetSource opens an in-memory DuckDB for the dataset at root.
func NewParquetSource(root string, opts Options) (*ParquetSource, error) {
	connector, err := duckdb.NewConnector("", func(execer driver.ExecerContext) error {
		bootQueries := []string{`SET threads TO 1`}
		if opts.MemoryLimit != "" {
			bootQueries = append(bootQueries, "SET memory_limit = "+quoteSQLLiteral(opts.MemoryLimit))
		}
		for _, q := range bootQueries {
			if _, err := execer.ExecContext(context.Background(), q, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	return &ParquetSource{db: sql.OpenDB(connector), root: root, opts: opts}, nil
}

// List returns every episode file under <root>/data, sorted by path.
func (s *ParquetSource) List(ctx context.Context) ([]episode.Ref, error) {
	var paths []string
	err := filepath.WalkDir(filepath.Join(s.root, dataDir), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), parquetExt) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}
	slices.Sort(paths)

	refs := make([]episode.Ref, 0, len(paths))
	for i, p := range paths {
		idx, ok := episodeIndexFromName(p)
		if !ok {
			idx = i
		}
		refs = append(refs, episode.Ref{Index: idx, Path: p})
	}
	return refs, nil
}

// episodeIndexFromName parses episode_000123.parquet.
func episodeIndexFromName(path string) (int, bool) {
	name := strings.TrimSuffix(filepath.Base(path), parquetExt)
	if !strings.HasPrefix(name, episodeFilePrefix) {
		return 0, false
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(name, episodeFilePrefix))
	return idx, err == nil
}

type column struct {
	name  string
	image bool
}

func (s *ParquetSource) columns(ctx context.Context, path string) ([]column, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT column_name FROM (DESCRIBE SELECT * FROM read_parquet("+quoteSQLLiteral(path)+"))")
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", path, err)
	}
	defer rows.Close()

	var cols []column
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		image := s.opts.ImagePrefix != "" && strings.HasPrefix(name, s.opts.ImagePrefix)
		if image && !s.opts.LoadImages {
			continue
		}
		cols = append(cols, column{name: name, image: image})
	}
	return cols, rows.Err()
}

// Load reads one episode's frames ordered by frame_index.
func (s *ParquetSource) Load(ctx context.Context, ref episode.Ref) ([]episode.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cols, err := s.columns(ctx, ref.Path)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%s has no readable columns", ref.Path)
	}

	names := make([]string, len(cols))
	hasFrameIndex := false
	for i, c := range cols {
		names[i] = quoteSQLIdentifier(c.name)
		hasFrameIndex = hasFrameIndex || c.name == frameIndexCol
	}
	query := "SELECT " + strings.Join(names, ", ") + " FROM read_parquet(" + quoteSQLLiteral(ref.Path) + ")"
	if hasFrameIndex {
		query += " ORDER BY " + quoteSQLIdentifier(frameIndexCol)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref.Path, err)
	}
	defer rows.Close()

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	var frames []episode.Frame
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s row %d: %w", ref.Path, len(frames), err)
		}
		f, err := s.frameFromRow(cols, vals, len(frames), ref.Index)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", ref.Path, len(frames), err)
		}
		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	log.Printf("[DuckDB] Read %d frames from %s", len(frames), ref.Path)
	return frames, nil
}

func (s *ParquetSource) frameFromRow(cols []column, vals []any, row, episodeIndex int) (episode.Frame, error) {
	f := episode.Frame{
		Index:        row,
		EpisodeIndex: episodeIndex,
		Vectors:      make(map[string][]float64, len(cols)),
	}
	for i, c := range cols {
		v := vals[i]
		if v == nil {
			continue
		}
		switch {
		case c.name == frameIndexCol:
			n, ok := toFloat(v)
			if !ok {
				return f, fmt.Errorf("column %s: unexpected %T", c.name, v)
			}
			f.Index = int(n)
		case c.name == episodeIndexCol:
			n, ok := toFloat(v)
			if !ok {
				return f, fmt.Errorf("column %s: unexpected %T", c.name, v)
			}
			f.EpisodeIndex = int(n)
		case c.image:
			img, ok := imageBytes(v)
			if !ok {
				return f, fmt.Errorf("column %s: unexpected image value %T", c.name, v)
			}
			if f.Images == nil {
				f.Images = map[string][]byte{}
			}
			f.Images[c.name] = img
		default:
			if vec, ok := toVector(v); ok {
				f.Vectors[c.name] = vec
			}
		}
	}
	return f, nil
}

// Close releases the DuckDB handle.
func (s *ParquetSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
