package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	email               TEXT NOT NULL,
	imap_host           TEXT NOT NULL DEFAULT '',
	imap_port           TEXT NOT NULL DEFAULT '993',
	smtp_host           TEXT NOT NULL DEFAULT '',
	smtp_port           TEXT NOT NULL DEFAULT '465',
	username            TEXT NOT NULL DEFAULT '',
	tls                 INTEGER NOT NULL DEFAULT 1,
	enabled             INTEGER NOT NULL DEFAULT 1,
	update_interval_sec INTEGER NOT NULL DEFAULT 300,
	created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS headers (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL,
	uid         INTEGER NOT NULL,
	message_id  TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	sender      TEXT NOT NULL DEFAULT '',
	recipients  TEXT NOT NULL DEFAULT '[]',
	date        DATETIME NOT NULL,
	flags       TEXT NOT NULL DEFAULT '[]',
	fetched_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_headers_account ON headers(account_id);
CREATE INDEX IF NOT EXISTS idx_headers_date ON headers(date);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS outbox (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL,
	recipients  TEXT NOT NULL,
	subject     TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '',
	in_reply_to TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	sent_at     DATETIME,
	attempts    INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(account_id, sent_at);

CREATE TABLE IF NOT EXISTS operation_log (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	account_id  TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_operation_log_finished ON operation_log(finished_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
	{
		version: 3,
		sql: `
ALTER TABLE outbox ADD COLUMN claimed INTEGER NOT NULL DEFAULT 0;

INSERT INTO schema_version (version) VALUES (3);
`,
	},
}
