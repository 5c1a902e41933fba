// Package checkpoint stores segment end states of a run in SQLite.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/san-kum/spiralsim/internal/dynamo"
	"github.com/san-kum/spiralsim/internal/sim"
)

// FileName is the checkpoint database inside a run directory.
const FileName = "checkpoints.db"

var ErrNoCheckpoint = errors.New("checkpoint: no checkpoint stored")

// Store wraps a SQLite connection holding one run's checkpoints.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates a checkpoint database at the given path.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		segment INTEGER PRIMARY KEY,
		t_start REAL NOT NULL,
		t_end REAL NOT NULL,
		steps INTEGER NOT NULL,
		rejected INTEGER NOT NULL,
		evaluations INTEGER NOT NULL,
		last_step REAL NOT NULL,
		dim INTEGER NOT NULL,
		state BLOB NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

type row struct {
	Segment     int     `db:"segment"`
	Start       float64 `db:"t_start"`
	End         float64 `db:"t_end"`
	Steps       int     `db:"steps"`
	Rejected    int     `db:"rejected"`
	Evaluations int     `db:"evaluations"`
	LastStep    float64 `db:"last_step"`
	Dim         int     `db:"dim"`
	State       []byte  `db:"state"`
	CreatedAt   string  `db:"created_at"`
}

// SaveCheckpoint stores cp, replacing an earlier checkpoint of the same
// segment.
func (s *Store) SaveCheckpoint(ctx context.Context, cp sim.Checkpoint) error {
	created := cp.Created
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.conn.ExecContext(ctx, `INSERT OR REPLACE INTO checkpoints
		(segment, t_start, t_end, steps, rejected, evaluations, last_step, dim, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.Segment, cp.Start, cp.End,
		cp.Stats.Steps, cp.Stats.Rejected, cp.Stats.Evaluations, cp.Stats.LastStep,
		len(cp.State), encodeState(cp.State), created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint %d: %w", cp.Segment, err)
	}
	return nil
}

// Latest returns the checkpoint with the highest segment number.
func (s *Store) Latest(ctx context.Context) (*sim.Checkpoint, error) {
	var r row
	err := s.conn.GetContext(ctx, &r, "SELECT * FROM checkpoints ORDER BY segment DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCheckpoint
	}
	if err != nil {
		return nil, err
	}
	return r.checkpoint()
}

// Summary describes a stored checkpoint without its state.
type Summary struct {
	Segment   int       `db:"segment"`
	Start     float64   `db:"t_start"`
	End       float64   `db:"t_end"`
	Steps     int       `db:"steps"`
	Bytes     int64     `db:"bytes"`
	CreatedAt string    `db:"created_at"`
	Created   time.Time `db:"-"`
}

// List returns every checkpoint in segment order.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	var out []Summary
	err := s.conn.SelectContext(ctx, &out,
		`SELECT segment, t_start, t_end, steps, length(state) AS bytes, created_at
		 FROM checkpoints ORDER BY segment`)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Created, _ = time.Parse(time.RFC3339Nano, out[i].CreatedAt)
	}
	return out, nil
}

// Reset removes every checkpoint and metadata entry so a fresh run does not
// inherit segments from an earlier one.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM checkpoints"); err != nil {
		return fmt.Errorf("reset checkpoints: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM run_meta"); err != nil {
		return fmt.Errorf("reset meta: %w", err)
	}
	return tx.Commit()
}

func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx, "INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)", key, value)
	return err
}

func (s *Store) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn.GetContext(ctx, &value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}

func (r row) checkpoint() (*sim.Checkpoint, error) {
	state, err := decodeState(r.State, r.Dim)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %d: %w", r.Segment, err)
	}
	created, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
	return &sim.Checkpoint{
		Segment: r.Segment,
		Start:   r.Start,
		End:     r.End,
		State:   state,
		Stats: dynamo.Stats{
			Steps:       r.Steps,
			Rejected:    r.Rejected,
			Evaluations: r.Evaluations,
			LastStep:    r.LastStep,
		},
		Created: created,
	}, nil
}

// encodeState writes each entry as little-endian (real, imag) float64s.
func encodeState(x dynamo.State) []byte {
	buf := make([]byte, 16*len(x))
	for i, c := range x {
		binary.LittleEndian.PutUint64(buf[16*i:], math.Float64bits(real(c)))
		binary.LittleEndian.PutUint64(buf[16*i+8:], math.Float64bits(imag(c)))
	}
	return buf
}

func decodeState(buf []byte, dim int) (dynamo.State, error) {
	if len(buf) != 16*dim {
		return nil, fmt.Errorf("state blob has %d bytes, want %d", len(buf), 16*dim)
	}
	x := make(dynamo.State, dim)
	for i := range x {
		re := math.Float64frombits(binary.LittleEndian.Uint64(buf[16*i:]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(buf[16*i+8:]))
		x[i] = complex(re, im)
	}
	return x, nil
}
