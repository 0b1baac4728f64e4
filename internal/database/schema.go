package database

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS channels (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	creator_id        TEXT NOT NULL REFERENCES users(id),
	active            BOOLEAN NOT NULL DEFAULT TRUE,
	is_direct_message BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS channel_members (
	channel_id TEXT NOT NULL REFERENCES channels(id),
	user_id    TEXT NOT NULL REFERENCES users(id),
	PRIMARY KEY (channel_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	channel_id TEXT NOT NULL REFERENCES channels(id),
	sender_id  TEXT NOT NULL REFERENCES users(id),
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS messages_channel_created_idx ON messages (channel_id, created_at);

CREATE TABLE IF NOT EXISTS message_reactions (
	message_id TEXT PRIMARY KEY REFERENCES messages(id),
	reactions  JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS notifications (
	id           TEXT PRIMARY KEY,
	recipient_id TEXT NOT NULL REFERENCES users(id),
	type         TEXT NOT NULL,
	channel_id   TEXT NOT NULL REFERENCES channels(id),
	message_id   TEXT REFERENCES messages(id),
	sender_id    TEXT NOT NULL REFERENCES users(id),
	read         BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS notifications_unread_idx ON notifications (recipient_id, read, created_at DESC);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS channels (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	creator_id        TEXT NOT NULL REFERENCES users(id),
	active            INTEGER NOT NULL DEFAULT 1,
	is_direct_message INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS channel_members (
	channel_id TEXT NOT NULL REFERENCES channels(id),
	user_id    TEXT NOT NULL REFERENCES users(id),
	PRIMARY KEY (channel_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	channel_id TEXT NOT NULL REFERENCES channels(id),
	sender_id  TEXT NOT NULL REFERENCES users(id),
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_channel_created_idx ON messages (channel_id, created_at);

CREATE TABLE IF NOT EXISTS message_reactions (
	message_id TEXT PRIMARY KEY REFERENCES messages(id),
	reactions  TEXT NOT NULL DEFAULT '{}',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS notifications (
	id           TEXT PRIMARY KEY,
	recipient_id TEXT NOT NULL REFERENCES users(id),
	type         TEXT NOT NULL,
	channel_id   TEXT NOT NULL REFERENCES channels(id),
	message_id   TEXT REFERENCES messages(id),
	sender_id    TEXT NOT NULL REFERENCES users(id),
	read         INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS notifications_unread_idx ON notifications (recipient_id, read, created_at);
`
