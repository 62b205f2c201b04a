package checkpoint

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/replay"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	id TEXT PRIMARY KEY,
	task_order INTEGER NOT NULL,
	epoch INTEGER NOT NULL,
	steps INTEGER NOT NULL,
	examples INTEGER NOT NULL,
	mean_loss REAL NOT NULL,
	params BLOB NOT NULL,
	memory BLOB,
	created_at TEXT NOT NULL,
	UNIQUE (task_order, epoch)
);`

const upsertCheckpoint = `
INSERT INTO checkpoints (id, task_order, epoch, steps, examples, mean_loss, params, memory, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (task_order, epoch) DO UPDATE SET
	id = excluded.id,
	steps = excluded.steps,
	examples = excluded.examples,
	mean_loss = excluded.mean_loss,
	params = excluded.params,
	memory = excluded.memory,
	created_at = excluded.created_at`

const selectCheckpoint = `
SELECT id, task_order, epoch, steps, examples, mean_loss, params, memory, created_at
FROM checkpoints
WHERE task_order = ? AND epoch = ?`

const listCheckpoints = `
SELECT id, task_order, epoch, steps, examples, mean_loss, created_at
FROM checkpoints
%s
ORDER BY task_order, epoch`

// SQLiteStore persists checkpoints in a single SQLite database file.
// Parameter and memory payloads are gob-encoded and zstd-compressed.
type SQLiteStore struct {
	db     *sql.DB
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	closed atomic.Bool
}

// NewSQLiteStore opens or creates the checkpoint database at path and
// applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate checkpoint database: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &SQLiteStore{db: db, enc: enc, dec: dec}, nil
}

// Save persists the checkpoint, replacing any existing checkpoint for
// the same task order and epoch. The checkpoint's ID and CreatedAt are
// assigned here.
func (s *SQLiteStore) Save(ctx context.Context, cp *Checkpoint) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if cp.Order < 1 || cp.Epoch < 1 {
		return fmt.Errorf("checkpoint key must be positive, got order %d epoch %d", cp.Order, cp.Epoch)
	}

	paramsBlob, err := s.encode(cp.Params)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	var memoryBlob []byte
	if len(cp.Memory) > 0 {
		memoryBlob, err = s.encode(cp.Memory)
		if err != nil {
			return fmt.Errorf("encode memory: %w", err)
		}
	}

	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, upsertCheckpoint,
		cp.ID, cp.Order, cp.Epoch, cp.Steps, cp.Examples, cp.MeanLoss,
		paramsBlob, memoryBlob, cp.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save checkpoint order %d epoch %d: %w", cp.Order, cp.Epoch, err)
	}
	return nil
}

// Load returns the full checkpoint for the task order and epoch,
// including parameters and the memory snapshot. A missing checkpoint
// fails with ErrNotFound.
func (s *SQLiteStore) Load(ctx context.Context, order, epoch int) (*Checkpoint, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var (
		cp         Checkpoint
		paramsBlob []byte
		memoryBlob []byte
		createdAt  string
	)
	err := s.db.QueryRowContext(ctx, selectCheckpoint, order, epoch).Scan(
		&cp.ID, &cp.Order, &cp.Epoch, &cp.Steps, &cp.Examples, &cp.MeanLoss,
		&paramsBlob, &memoryBlob, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %d epoch %d", ErrNotFound, order, epoch)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint order %d epoch %d: %w", order, epoch, err)
	}

	if cp.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse checkpoint timestamp: %w", err)
	}
	if err := s.decode(paramsBlob, &cp.Params); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if len(memoryBlob) > 0 {
		var examples []replay.Example
		if err := s.decode(memoryBlob, &examples); err != nil {
			return nil, fmt.Errorf("decode memory: %w", err)
		}
		cp.Memory = examples
	}
	return &cp, nil
}

// List returns checkpoint summaries ordered by task order and epoch.
// A positive order restricts the listing to that task order.
func (s *SQLiteStore) List(ctx context.Context, order int) ([]Summary, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	query := fmt.Sprintf(listCheckpoints, "")
	var args []any
	if order > 0 {
		query = fmt.Sprintf(listCheckpoints, "WHERE task_order = ?")
		args = append(args, order)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var (
			sum       Summary
			createdAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Order, &sum.Epoch, &sum.Steps,
			&sum.Examples, &sum.MeanLoss, &createdAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		if sum.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse checkpoint timestamp: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return summaries, nil
}

// Latest returns the checkpoint with the highest epoch for the task
// order, or ErrNotFound if the order has none.
func (s *SQLiteStore) Latest(ctx context.Context, order int) (*Checkpoint, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var epoch sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(epoch) FROM checkpoints WHERE task_order = ?`, order).Scan(&epoch)
	if err != nil {
		return nil, fmt.Errorf("find latest checkpoint for order %d: %w", order, err)
	}
	if !epoch.Valid {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, order)
	}
	return s.Load(ctx, order, int(epoch.Int64))
}

// Close releases the database and compression resources.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.enc.Close()
	s.dec.Close()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close checkpoint database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return s.enc.EncodeAll(buf.Bytes(), nil), nil
}

func (s *SQLiteStore) decode(blob []byte, v any) error {
	raw, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return err
	}
	return gob.NewDecoder(bytes.NewReader(raw)).Decode(v)
}
