package titanvolume

import (
	"database/sql"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// CorruptionEvent records a single failed replica read observed by a
// Session, whether or not the other replica supplied the data.
type CorruptionEvent struct {
	ID         string
	Sector     uint32
	Replica    uint8
	DetectedAt time.Time
	Context    string
}

// AuditLog persists CorruptionEvents for later inspection (tsvctl stat,
// operator tooling). A Session never fails an I/O operation because its
// AuditLog is unavailable; RecordCorruption errors are logged and
// swallowed by the caller.
type AuditLog interface {
	RecordCorruption(ev CorruptionEvent) error
	Recent(limit int) ([]CorruptionEvent, error)
	Close() error
}

// dedupeKey identifies a (sector, replica) pair for the purposes of
// collapsing repeated corruption reports from the same spot into a
// single audit row while the pair stays in the log's bounded LRU. This
// is not a sector-data
// cache — it holds no ciphertext, plaintext, or MAC material, only the
// coordinates of events already recorded.
type dedupeKey struct {
	sector  uint32
	replica uint8
}

// sqliteAuditLog is an AuditLog backed by a local SQLite database. An
// in-process LRU guards against re-inserting a row for every retry of
// an already-known-bad replica.
type sqliteAuditLog struct {
	db   *sql.DB
	seen *lru.Cache[dedupeKey, struct{}]
}

// NewSQLiteAuditLog opens (creating if necessary) a SQLite database at
// path and prepares its schema. dedupeSize bounds how many distinct
// (sector, replica) pairs are remembered for deduplication; 0 disables
// deduplication.
func NewSQLiteAuditLog(path string, dedupeSize int) (*sqliteAuditLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS corruption_events (
	id          TEXT PRIMARY KEY,
	sector      INTEGER NOT NULL,
	replica     INTEGER NOT NULL,
	detected_at INTEGER NOT NULL,
	context     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_corruption_events_sector ON corruption_events(sector);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}

	var seen *lru.Cache[dedupeKey, struct{}]
	if dedupeSize > 0 {
		seen, err = lru.New[dedupeKey, struct{}](dedupeSize)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create dedupe cache: %w", err)
		}
	}

	return &sqliteAuditLog{db: db, seen: seen}, nil
}

// RecordCorruption inserts ev, assigning it a fresh v4 ID if one is not
// already set. If deduplication is enabled and ev's (sector, replica)
// pair is still in the dedupe cache from an earlier insert through this
// log, the insert is skipped; a pair evicted from the cache is inserted
// again.
func (a *sqliteAuditLog) RecordCorruption(ev CorruptionEvent) error {
	key := dedupeKey{sector: ev.Sector, replica: ev.Replica}
	if a.seen != nil {
		if _, ok := a.seen.Get(key); ok {
			return nil
		}
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	const insert = `
INSERT INTO corruption_events (id, sector, replica, detected_at, context)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING
`
	if _, err := a.db.Exec(insert, ev.ID, ev.Sector, ev.Replica, ev.DetectedAt.Unix(), ev.Context); err != nil {
		return fmt.Errorf("insert corruption event: %w", err)
	}

	if a.seen != nil {
		a.seen.Add(key, struct{}{})
	}
	return nil
}

// Recent returns up to limit most-recently-detected corruption events,
// newest first.
func (a *sqliteAuditLog) Recent(limit int) ([]CorruptionEvent, error) {
	const query = `
SELECT id, sector, replica, detected_at, context
FROM corruption_events
ORDER BY detected_at DESC, rowid DESC
LIMIT ?
`
	rows, err := a.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("query corruption events: %w", err)
	}
	defer rows.Close()

	var events []CorruptionEvent
	for rows.Next() {
		var ev CorruptionEvent
		var detectedAt int64
		if err := rows.Scan(&ev.ID, &ev.Sector, &ev.Replica, &detectedAt, &ev.Context); err != nil {
			return nil, fmt.Errorf("scan corruption event: %w", err)
		}
		ev.DetectedAt = time.Unix(detectedAt, 0).UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corruption events: %w", err)
	}
	return events, nil
}

// Close closes the underlying database handle.
func (a *sqliteAuditLog) Close() error {
	return a.db.Close()
}

// NopAuditLog discards every event. It is the default AuditLog for a
// Session that does not request persistent corruption tracking.
type NopAuditLog struct{}

func (NopAuditLog) RecordCorruption(CorruptionEvent) error { return nil }
func (NopAuditLog) Recent(int) ([]CorruptionEvent, error)  { return nil, nil }
func (NopAuditLog) Close() error                           { return nil }
