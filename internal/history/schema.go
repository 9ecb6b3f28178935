package history

import (
	"database/sql"

	"codeberg.org/mutker/nvidiawatch/internal/errors"
	"codeberg.org/mutker/nvidiawatch/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS samples (
	       metric     TEXT NOT NULL,
	       timestamp  INTEGER NOT NULL CHECK (typeof(timestamp) = 'integer'),
	       value      INTEGER NOT NULL CHECK (typeof(value) = 'integer'),
	       PRIMARY KEY (metric, timestamp)
	   );
	   CREATE TABLE IF NOT EXISTS transitions (
	       id         TEXT PRIMARY KEY,
	       rule       TEXT NOT NULL,
	       metric     TEXT NOT NULL,
	       state      TEXT NOT NULL CHECK (state IN ('raised', 'cleared')),
	       severity   TEXT NOT NULL,
	       value      INTEGER NOT NULL,
	       timestamp  INTEGER NOT NULL,
	       condition  TEXT NOT NULL
	   );
	   CREATE INDEX IF NOT EXISTS transitions_timestamp ON transitions (timestamp);`

	insertSampleSQL = `
    INSERT OR IGNORE INTO samples (metric, timestamp, value)
    VALUES (?, ?, ?)`

	insertTransitionSQL = `
    INSERT INTO transitions (
        id, rule, metric, state, severity, value, timestamp, condition
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectSamplesSQL = `
    SELECT timestamp, value
    FROM samples
    WHERE metric = ?
    ORDER BY timestamp DESC
    LIMIT ?`

	latestTransitionRowSQL = `
    SELECT rowid FROM transitions AS l
    WHERE l.rule = t.rule
    ORDER BY l.timestamp DESC, l.rowid DESC
    LIMIT 1`

	selectLatestTransitionsSQL = `
    SELECT id, rule, metric, state, severity, value, timestamp, condition
    FROM transitions AS t
    WHERE t.rowid = (` + latestTransitionRowSQL + `)
    ORDER BY timestamp ASC, rule ASC`

	pruneSamplesSQL = `
    DELETE FROM samples WHERE timestamp < ?`

	// the newest transition of each rule survives so restarts know its state
	pruneTransitionsSQL = `
    DELETE FROM transitions
    WHERE timestamp < ?
      AND rowid NOT IN (
          SELECT (` + latestTransitionRowSQL + `)
          FROM (SELECT DISTINCT rule FROM transitions) AS t
      )`
)

var dataTables = []string{"samples", "transitions"}

var pruneSQL = map[string]string{
	"samples":     pruneSamplesSQL,
	"transitions": pruneTransitionsSQL,
}

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Schema initialized successfully")

	return nil
}

// GetSchemaVersion returns the current schema version, or 0 for an empty
// database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	errFactory := errors.New()
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
