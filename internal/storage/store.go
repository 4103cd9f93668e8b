package storage

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/dynshot/internal/config"
	"github.com/san-kum/dynshot/internal/dynamo"
	"github.com/san-kum/dynshot/internal/trajectory"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("storage: run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	model       TEXT NOT NULL,
	integrator  TEXT NOT NULL,
	shot        TEXT NOT NULL,
	dofs        INTEGER NOT NULL,
	steps       INTEGER NOT NULL,
	dt          REAL NOT NULL,
	loss        REAL NOT NULL,
	created_at  INTEGER NOT NULL,
	config      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS run_metrics (
	run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	name    TEXT NOT NULL,
	value   REAL NOT NULL,
	PRIMARY KEY (run_id, name)
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at);
`

// Store keeps an index of saved rollouts in SQLite and the trajectories
// themselves as CSV files next to it.
type Store struct {
	baseDir string
	db      *sql.DB
}

type RunMetadata struct {
	ID         string
	Model      string
	Integrator string
	Shot       string
	Dofs       int
	Steps      int
	Dt         float64
	Loss       float64
	Timestamp  time.Time
	Config     *config.Config
	Metrics    map[string]float64
}

// Trajectory is a saved rollout. Times and row k of the CSV belong to the
// state before step k; the last row is the final state.
type Trajectory struct {
	Names   []string
	Times   []float64
	Start   dynamo.State
	Rollout *trajectory.Rollout
}

func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	dsn := filepath.Join(baseDir, "runs.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{baseDir: baseDir, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) csvPath(id string) string {
	return filepath.Join(s.baseDir, id+".csv")
}

// Save writes the trajectory and indexes it under a fresh id. meta.ID and
// meta.Timestamp are filled in.
func (s *Store) Save(ctx context.Context, meta *RunMetadata, traj *Trajectory) (id string, err error) {
	meta.ID = uuid.NewString()
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	cfgYAML, err := yaml.Marshal(meta.Config)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}

	if err := writeTrajectory(s.csvPath(meta.ID), traj); err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(s.csvPath(meta.ID))
		}
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, model, integrator, shot, dofs, steps, dt, loss, created_at, config)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Model, meta.Integrator, meta.Shot, meta.Dofs, meta.Steps, meta.Dt, meta.Loss,
		meta.Timestamp.UnixMilli(), string(cfgYAML))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	for name, value := range meta.Metrics {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO run_metrics (run_id, name, value) VALUES (?, ?, ?)`,
			meta.ID, name, value); err != nil {
			return "", fmt.Errorf("insert metric %s: %w", name, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// List returns every run, newest first.
func (s *Store) List(ctx context.Context) ([]RunMetadata, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model, integrator, shot, dofs, steps, dt, loss, created_at, config
		 FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		meta, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *meta)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].Metrics, err = s.metrics(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) Load(ctx context.Context, runID string) (*RunMetadata, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, model, integrator, shot, dofs, steps, dt, loss, created_at, config
		 FROM runs WHERE id = ?`, runID)
	meta, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	if meta.Metrics, err = s.metrics(ctx, runID); err != nil {
		return nil, err
	}
	return meta, nil
}

// Delete removes a run and its trajectory file.
func (s *Store) Delete(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err := os.Remove(s.csvPath(runID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) LoadTrajectory(runID string) (*Trajectory, error) {
	traj, err := readTrajectory(s.csvPath(runID))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return traj, err
}

func (s *Store) metrics(ctx context.Context, runID string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM run_metrics WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*RunMetadata, error) {
	var (
		meta    RunMetadata
		created int64
		cfgYAML string
	)
	if err := sc.Scan(&meta.ID, &meta.Model, &meta.Integrator, &meta.Shot, &meta.Dofs, &meta.Steps,
		&meta.Dt, &meta.Loss, &created, &cfgYAML); err != nil {
		return nil, err
	}
	meta.Timestamp = time.UnixMilli(created).UTC()
	meta.Config = config.DefaultConfig()
	if err := yaml.Unmarshal([]byte(cfgYAML), meta.Config); err != nil {
		return nil, fmt.Errorf("decode config of %s: %w", meta.ID, err)
	}
	return &meta, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeTrajectory(path string, traj *Trajectory) (err error) {
	dofs, steps := traj.Rollout.Dims()
	if len(traj.Names) != dofs {
		panic(dynamo.DimensionError("dof names", len(traj.Names), dofs))
	}
	if len(traj.Times) != steps+1 {
		panic(dynamo.DimensionError("times", len(traj.Times), steps+1))
	}
	if len(traj.Start) != 2*dofs {
		panic(dynamo.DimensionError("start state", len(traj.Start), 2*dofs))
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(file))

	w := csv.NewWriter(file)

	header := []string{"time"}
	for _, prefix := range []string{"q", "v", "f"} {
		for _, name := range traj.Names {
			header = append(header, prefix+":"+name)
		}
	}
	if err := w.Write(header); err != nil {
		return err
	}

	r := traj.Rollout
	row := make([]string, 1+3*dofs)
	for k := 0; k <= steps; k++ {
		row[0] = formatFloat(traj.Times[k])
		for i := 0; i < dofs; i++ {
			var q, v, f float64
			if k == 0 {
				q, v = traj.Start[i], traj.Start[dofs+i]
			} else {
				q, v = r.Poses.At(i, k-1), r.Vels.At(i, k-1)
			}
			if k < steps {
				f = r.Forces.At(i, k)
			}
			row[1+i] = formatFloat(q)
			row[1+dofs+i] = formatFloat(v)
			row[1+2*dofs+i] = formatFloat(f)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readTrajectory(path string) (*Trajectory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) < 3 {
		return nil, fmt.Errorf("%s: need a header and at least two states, got %d rows", path, len(records))
	}

	header := records[0]
	if (len(header)-1)%3 != 0 || len(header) < 4 {
		return nil, fmt.Errorf("%s: malformed header %v", path, header)
	}
	dofs := (len(header) - 1) / 3
	steps := len(records) - 2

	traj := &Trajectory{
		Names:   make([]string, dofs),
		Times:   make([]float64, steps+1),
		Start:   make(dynamo.State, 2*dofs),
		Rollout: trajectory.NewRollout(dofs, steps),
	}
	for i := 0; i < dofs; i++ {
		traj.Names[i] = header[1+i][len("q:"):]
	}

	vals := make([]float64, len(header))
	for k, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("%s: row %d has %d fields, want %d", path, k+1, len(rec), len(header))
		}
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d: %w", path, k+1, err)
			}
			vals[j] = v
		}
		traj.Times[k] = vals[0]
		for i := 0; i < dofs; i++ {
			if k == 0 {
				traj.Start[i] = vals[1+i]
				traj.Start[dofs+i] = vals[1+dofs+i]
			} else {
				traj.Rollout.Poses.Set(i, k-1, vals[1+i])
				traj.Rollout.Vels.Set(i, k-1, vals[1+dofs+i])
			}
			if k < steps {
				traj.Rollout.Forces.Set(i, k, vals[1+2*dofs+i])
			}
		}
	}
	return traj, nil
}
