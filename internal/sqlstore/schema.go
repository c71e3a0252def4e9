package sqlstore

// Timestamps are unix milliseconds so comparisons behave the same on every
// driver.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		username TEXT NOT NULL,
		username_lower TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		email_lower TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		avatar TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS polls (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_by TEXT NOT NULL REFERENCES users(id),
		status TEXT NOT NULL CHECK (status IN ('public', 'private', 'closed')),
		category TEXT NOT NULL DEFAULT '[]',
		image TEXT NOT NULL DEFAULT '',
		published_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL,
		views BIGINT NOT NULL DEFAULT 0,
		CHECK (expires_at > published_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_polls_created_by ON polls(created_by)`,
	`CREATE INDEX IF NOT EXISTS idx_polls_expires_at ON polls(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_polls_published_at ON polls(published_at)`,
	`CREATE TABLE IF NOT EXISTS poll_options (
		poll_id TEXT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		label TEXT NOT NULL,
		PRIMARY KEY (poll_id, idx)
	)`,
	`CREATE TABLE IF NOT EXISTS vote_events (
		poll_id TEXT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id),
		option_idx INTEGER NOT NULL,
		voted_at BIGINT NOT NULL,
		PRIMARY KEY (poll_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vote_events_voted_at ON vote_events(voted_at)`,
	`CREATE TABLE IF NOT EXISTS user_votes (
		user_id TEXT NOT NULL REFERENCES users(id),
		poll_id TEXT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		choice INTEGER NOT NULL,
		PRIMARY KEY (user_id, poll_id)
	)`,
}
