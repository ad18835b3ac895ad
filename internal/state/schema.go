package state

// schema defines the durable state tables.
//
// sync_sessions holds one row per fork/sync run with a terminal status set
// exactly once. checkpoints is an append-only progress log; the latest row
// per session defines the resume point. issue_mappings records one
// destination key per (session, source key); re-processing upserts so the
// latest mapping wins.
const schema = `
CREATE TABLE IF NOT EXISTS sync_sessions (
	sync_id        TEXT PRIMARY KEY,
	source_project TEXT NOT NULL,
	dest_project   TEXT NOT NULL,
	sync_type      TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	start_time     TEXT NOT NULL,
	end_time       TEXT,
	error_message  TEXT
);

CREATE TABLE IF NOT EXISTS checkpoints (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	sync_id    TEXT NOT NULL REFERENCES sync_sessions(sync_id),
	phase      TEXT NOT NULL,
	progress   INTEGER NOT NULL,
	total      INTEGER NOT NULL,
	timestamp  TEXT NOT NULL,
	resume_key TEXT
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_sync ON checkpoints(sync_id, id);

CREATE TABLE IF NOT EXISTS issue_mappings (
	sync_id    TEXT NOT NULL REFERENCES sync_sessions(sync_id),
	source_key TEXT NOT NULL,
	dest_key   TEXT NOT NULL,
	timestamp  TEXT NOT NULL,
	PRIMARY KEY (sync_id, source_key)
);
`
