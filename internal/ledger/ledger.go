// Package ledger keeps a SQLite record of every plan the batch controller
// has processed.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the ledger database under the workspace's .newton directory.
const FileName = "ledger.db"

// Outcome values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entry is one processed plan.
type Entry struct {
	ID              int64
	ProjectID       string
	TaskID          string
	PlanFile        string
	Branch          string
	Outcome         string
	ExecutionID     string
	ExecutionStatus string
	// nil when the hook is not configured or did not run
	PreRunExit *int
	PostExit   *int
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall time spent on the plan.
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Ledger is the SQLite-backed run history.
type Ledger struct {
	db *sql.DB
}

// Path returns the default ledger location for a workspace root.
func Path(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".newton", FileName)
}

// New opens (creating when needed) the ledger at dbPath. ":memory:" gives a
// private in-memory ledger.
func New(dbPath string) (*Ledger, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// One connection: the controller is the only writer and an in-memory
	// database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record inserts e and returns its row id.
func (l *Ledger) Record(e Entry) (int64, error) {
	res, err := l.db.Exec(`
		INSERT INTO runs (project_id, task_id, plan_file, branch, outcome, execution_id, execution_status,
			pre_run_exit, post_exit, message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ProjectID,
		e.TaskID,
		e.PlanFile,
		e.Branch,
		e.Outcome,
		e.ExecutionID,
		e.ExecutionStatus,
		nullInt(e.PreRunExit),
		nullInt(e.PostExit),
		e.Message,
		e.StartedAt.UnixMilli(),
		e.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit entries for projectID, newest first. A
// non-positive limit returns every entry.
func (l *Ledger) Recent(projectID string, limit int) ([]Entry, error) {
	query := `SELECT id, project_id, task_id, plan_file, branch, outcome, execution_id, execution_status,
		pre_run_exit, post_exit, message, started_at, finished_at
		FROM runs WHERE project_id = ? ORDER BY started_at DESC, id DESC`
	args := []interface{}{projectID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                        Entry
			branch, execID, execStat sql.NullString
			message                  sql.NullString
			preRun, post             sql.NullInt64
			startedMillis, finMillis int64
		)
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.TaskID, &e.PlanFile, &branch, &e.Outcome, &execID, &execStat,
			&preRun, &post, &message, &startedMillis, &finMillis); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.Branch = branch.String
		e.ExecutionID = execID.String
		e.ExecutionStatus = execStat.String
		e.Message = message.String
		e.PreRunExit = intPtr(preRun)
		e.PostExit = intPtr(post)
		e.StartedAt = time.UnixMilli(startedMillis)
		e.FinishedAt = time.UnixMilli(finMillis)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Counts returns how many runs of projectID ended in each outcome.
func (l *Ledger) Counts(projectID string) (map[string]int, error) {
	rows, err := l.db.Query(`SELECT outcome, COUNT(*) FROM runs WHERE project_id = ? GROUP BY outcome`, projectID)
	if err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
