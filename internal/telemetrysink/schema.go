package telemetrysink

const createTableSQL = `
CREATE TABLE IF NOT EXISTS telemetry_flushes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	marker      TEXT NOT NULL,
	payload     TEXT NOT NULL,
	recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_telemetry_flushes_marker ON telemetry_flushes(marker);
`
