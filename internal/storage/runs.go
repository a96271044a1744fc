package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrRunNotFound reports a run id with no persisted row. Callers match it
// with errors.Is to tell a missing run apart from a query failure.
var ErrRunNotFound = errors.New("run not found")

// RunKind distinguishes the two training modes.
type RunKind string

const (
	KindTrain RunKind = "train"
	KindScan  RunKind = "scan"
)

// RunStatus tracks a run through its lifecycle.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Run is one persisted training or scan run. Parameter vectors are stored as
// msgpack blobs and decoded on read.
type Run struct {
	ID            string    `json:"id"`
	Kind          RunKind   `json:"kind"`
	Status        RunStatus `json:"status"`
	Reset         bool      `json:"reset"`
	TrashTraining bool      `json:"trash_training"`
	Shots         int       `json:"shots"`
	InitialParams []float64 `json:"initial_params,omitempty"`
	FinalParams   []float64 `json:"final_params,omitempty"`
	FinalLoss     float64   `json:"final_loss"`
	Evaluations   int       `json:"evaluations"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Iteration is one optimization step of a training run.
type Iteration struct {
	RunID     string    `json:"run_id"`
	Iteration int       `json:"iteration"`
	Params    []float64 `json:"params"`
	Loss      float64   `json:"loss"`
}

// ScanResult is one evaluated grid point of a scan run.
type ScanResult struct {
	RunID    string    `json:"run_id"`
	Position int       `json:"position"`
	Params   []float64 `json:"params"`
	Loss     float64   `json:"loss"`
}

// RunRepository provides persistence for runs and their histories.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates the repository and ensures the schema exists.
func NewRunRepository(db *sql.DB) (*RunRepository, error) {
	r := &RunRepository{db: db}
	if err := r.ensureSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RunRepository) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id             TEXT PRIMARY KEY,
		kind           TEXT NOT NULL,
		status         TEXT NOT NULL,
		reset_mode     INTEGER NOT NULL,
		trash_training INTEGER NOT NULL,
		shots          INTEGER NOT NULL,
		initial_params BLOB,
		final_params   BLOB,
		final_loss     REAL NOT NULL DEFAULT 0,
		evaluations    INTEGER NOT NULL DEFAULT 0,
		error          TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMP NOT NULL,
		updated_at     TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS iterations (
		run_id    TEXT NOT NULL REFERENCES runs(id),
		iteration INTEGER NOT NULL,
		params    BLOB NOT NULL,
		loss      REAL NOT NULL,
		PRIMARY KEY (run_id, iteration)
	);
	CREATE TABLE IF NOT EXISTS scan_points (
		run_id   TEXT NOT NULL REFERENCES runs(id),
		position INTEGER NOT NULL,
		params   BLOB NOT NULL,
		loss     REAL NOT NULL,
		PRIMARY KEY (run_id, position)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create runs schema: %w", err)
	}
	return nil
}

// CreateRun inserts a new running run and returns its generated id.
func (r *RunRepository) CreateRun(kind RunKind, reset, trashTraining bool, shots int, initial []float64) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	blob, err := packParams(initial)
	if err != nil {
		return "", err
	}

	_, err = r.db.Exec(`
		INSERT INTO runs (id, kind, status, reset_mode, trash_training, shots, initial_params, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(kind), string(StatusRunning), boolToInt(reset), boolToInt(trashTraining), shots, blob, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// CompleteRun records the final result of a successful run.
func (r *RunRepository) CompleteRun(id string, finalParams []float64, finalLoss float64, evaluations int) error {
	blob, err := packParams(finalParams)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		UPDATE runs SET status = ?, final_params = ?, final_loss = ?, evaluations = ?, updated_at = ?
		WHERE id = ?`,
		string(StatusCompleted), blob, finalLoss, evaluations, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", id, err)
	}
	return nil
}

// FailRun records a run failure with its error message.
func (r *RunRepository) FailRun(id string, runErr error) error {
	_, err := r.db.Exec(`
		UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(StatusFailed), runErr.Error(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark run %s failed: %w", id, err)
	}
	return nil
}

// AppendIteration stores one optimization step.
func (r *RunRepository) AppendIteration(it Iteration) error {
	blob, err := packParams(it.Params)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT OR REPLACE INTO iterations (run_id, iteration, params, loss) VALUES (?, ?, ?, ?)`,
		it.RunID, it.Iteration, blob, it.Loss)
	if err != nil {
		return fmt.Errorf("failed to insert iteration %d for run %s: %w", it.Iteration, it.RunID, err)
	}
	return nil
}

// SaveScanPoints stores the full ordered scan result in one transaction.
func (r *RunRepository) SaveScanPoints(runID string, points []ScanResult) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO scan_points (run_id, position, params, loss) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare scan insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		blob, err := packParams(p.Params)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(runID, p.Position, blob, p.Loss); err != nil {
			return fmt.Errorf("failed to insert scan point %d: %w", p.Position, err)
		}
	}
	return tx.Commit()
}

// GetRun fetches one run by id.
func (r *RunRepository) GetRun(id string) (*Run, error) {
	row := r.db.QueryRow(`
		SELECT id, kind, status, reset_mode, trash_training, shots, initial_params, final_params,
		       final_loss, evaluations, error, created_at, updated_at
		FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns runs newest first, up to limit.
func (r *RunRepository) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, kind, status, reset_mode, trash_training, shots, initial_params, final_params,
		       final_loss, evaluations, error, created_at, updated_at
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListIterations returns a run's optimization history in step order.
func (r *RunRepository) ListIterations(runID string) ([]Iteration, error) {
	rows, err := r.db.Query(`
		SELECT run_id, iteration, params, loss FROM iterations
		WHERE run_id = ? ORDER BY iteration ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list iterations: %w", err)
	}
	defer rows.Close()

	var iterations []Iteration
	for rows.Next() {
		var it Iteration
		var blob []byte
		if err := rows.Scan(&it.RunID, &it.Iteration, &blob, &it.Loss); err != nil {
			return nil, fmt.Errorf("failed to scan iteration: %w", err)
		}
		if it.Params, err = unpackParams(blob); err != nil {
			return nil, err
		}
		iterations = append(iterations, it)
	}
	return iterations, rows.Err()
}

// ListScanPoints returns a scan run's results in grid order.
func (r *RunRepository) ListScanPoints(runID string) ([]ScanResult, error) {
	rows, err := r.db.Query(`
		SELECT run_id, position, params, loss FROM scan_points
		WHERE run_id = ? ORDER BY position ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan points: %w", err)
	}
	defer rows.Close()

	var points []ScanResult
	for rows.Next() {
		var p ScanResult
		var blob []byte
		if err := rows.Scan(&p.RunID, &p.Position, &blob, &p.Loss); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		if p.Params, err = unpackParams(blob); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var kind, status string
	var resetMode, trash int
	var initialBlob, finalBlob []byte

	err := row.Scan(&run.ID, &kind, &status, &resetMode, &trash, &run.Shots,
		&initialBlob, &finalBlob, &run.FinalLoss, &run.Evaluations, &run.Error,
		&run.CreatedAt, &run.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Kind = RunKind(kind)
	run.Status = RunStatus(status)
	run.Reset = resetMode != 0
	run.TrashTraining = trash != 0
	if run.InitialParams, err = unpackParams(initialBlob); err != nil {
		return nil, err
	}
	if run.FinalParams, err = unpackParams(finalBlob); err != nil {
		return nil, err
	}
	return &run, nil
}

func packParams(params []float64) ([]byte, error) {
	if params == nil {
		return nil, nil
	}
	blob, err := msgpack.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	return blob, nil
}

func unpackParams(blob []byte) ([]float64, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	var params []float64
	if err := msgpack.Unmarshal(blob, &params); err != nil {
		return nil, fmt.Errorf("failed to decode params: %w", err)
	}
	return params, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
