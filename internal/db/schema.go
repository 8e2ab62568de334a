package db

const schemaSQL = `
CREATE TABLE IF NOT EXISTS covey_messages (
	seq INTEGER PRIMARY KEY,
	id TEXT NOT NULL,
	ts INTEGER NOT NULL,
	kind TEXT NOT NULL,
	sender TEXT NOT NULL,
	sender_name TEXT,
	channel_id TEXT,
	body TEXT,
	action TEXT,
	raw TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_covey_messages_channel ON covey_messages(channel_id, seq);
CREATE INDEX IF NOT EXISTS idx_covey_messages_id ON covey_messages(id);

CREATE TABLE IF NOT EXISTS covey_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS covey_pins (
	channel_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	PRIMARY KEY (channel_id, message_id)
);

CREATE TABLE IF NOT EXISTS covey_reactions (
	message_id TEXT NOT NULL,
	emoji TEXT NOT NULL,
	sender TEXT NOT NULL,
	PRIMARY KEY (message_id, emoji, sender)
);

CREATE TABLE IF NOT EXISTS covey_edits (
	message_id TEXT PRIMARY KEY,
	text TEXT NOT NULL
);
`

func initSchema(conn DBTX) error {
	_, err := conn.Exec(schemaSQL)
	return err
}
