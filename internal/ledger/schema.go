package ledger

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id TEXT NOT NULL,
    task_id TEXT NOT NULL,
    plan_file TEXT NOT NULL,
    branch TEXT,
    outcome TEXT NOT NULL,
    execution_id TEXT,
    execution_status TEXT,
    pre_run_exit INTEGER,
    post_exit INTEGER,
    message TEXT,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project_id, started_at);
`
