package store

const Schema = `
CREATE TABLE IF NOT EXISTS tiles (
	source TEXT NOT NULL,
	z INTEGER NOT NULL,
	x INTEGER NOT NULL,
	y INTEGER NOT NULL,
	data BLOB NOT NULL,
	size INTEGER NOT NULL,
	updated_at INTEGER NOT NULL, -- unix millis
	PRIMARY KEY (source, z, x, y)
);

CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	source TEXT NOT NULL,
	status TEXT NOT NULL,

	-- Bounds
	north REAL NOT NULL,
	south REAL NOT NULL,
	east REAL NOT NULL,
	west REAL NOT NULL,
	min_zoom INTEGER NOT NULL,
	max_zoom INTEGER NOT NULL,

	-- Counters
	total_tiles INTEGER NOT NULL DEFAULT 0,
	downloaded_tiles INTEGER NOT NULL DEFAULT 0,
	skipped_tiles INTEGER NOT NULL DEFAULT 0,
	failed_tiles INTEGER NOT NULL DEFAULT 0,

	-- Location
	location_name TEXT,
	center_lat REAL NOT NULL DEFAULT 0,
	center_lng REAL NOT NULL DEFAULT 0,

	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
