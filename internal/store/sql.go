package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/compasscal/compass/internal/core"

	"github.com/google/uuid"
)

const (
	defaultEventsTable  = "compass_events"
	defaultSyncsTable   = "compass_syncs"
	sqlOperationTimeout = 5 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// dialect captures the differences between the SQL backends.
type dialect struct {
	driver string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
	// single connection; SQLite serializes writers anyway
	singleConn bool
}

var (
	dialectSQLite   = dialect{driver: "sqlite", singleConn: true}
	dialectSQLite3  = dialect{driver: "sqlite3", singleConn: true}
	dialectPostgres = dialect{driver: "postgres", numbered: true}
)

// SQLStore implements core.Storage on database/sql. The schema is created
// lazily on first use.
type SQLStore struct {
	dsn         string
	dialect     dialect
	eventsTable string
	syncsTable  string
	openDB      sqlOpenFunc
	now         func() time.Time

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func newSQLStore(d dialect, dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%s: empty dsn", d.driver)
	}
	return &SQLStore{
		dsn:         dsn,
		dialect:     d,
		eventsTable: defaultEventsTable,
		syncsTable:  defaultSyncsTable,
		openDB:      sql.Open,
		now:         time.Now,
	}, nil
}

func (s *SQLStore) ensureReady() error {
	s.initOnce.Do(func() {
		db, err := s.openDB(s.dialect.driver, s.dsn)
		if err != nil {
			s.initErr = err
			return
		}
		if s.dialect.singleConn {
			db.SetMaxOpenConns(1)
		}
		ctx, cancel := context.WithTimeout(context.Background(), sqlOperationTimeout)
		defer cancel()

		for _, stmt := range s.schema() {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				_ = db.Close()
				s.initErr = fmt.Errorf("create schema: %w", err)
				return
			}
		}
		s.db = db
	})
	return s.initErr
}

func (s *SQLStore) schema() []string {
	events := quoteIdentifier(s.eventsTable)
	return []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				g_event_id TEXT NOT NULL DEFAULT '',
				title TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				priority TEXT NOT NULL DEFAULT '',
				origin TEXT NOT NULL DEFAULT '',
				start_ms BIGINT NOT NULL,
				end_ms BIGINT NOT NULL,
				is_all_day INTEGER NOT NULL DEFAULT 0,
				is_someday INTEGER NOT NULL DEFAULT 0,
				updated_ms BIGINT NOT NULL
			)`, events),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (user_id, g_event_id)`,
			quoteIdentifier(s.eventsTable+"_user_gevent"), events),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (user_id, start_ms)`,
			quoteIdentifier(s.eventsTable+"_user_start"), events),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				user_id TEXT PRIMARY KEY,
				payload TEXT NOT NULL,
				updated_ms BIGINT NOT NULL
			)`, quoteIdentifier(s.syncsTable)),
	}
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const eventColumns = "id, user_id, g_event_id, title, description, priority, origin, start_ms, end_ms, is_all_day, is_someday, updated_ms"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) BulkWrite(ctx context.Context, ops []core.BulkOperation) (core.BulkResult, error) {
	var res core.BulkResult
	if len(ops) == 0 {
		return res, nil
	}
	if err := s.ensureReady(); err != nil {
		return res, err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, op := range ops {
		switch op := op.(type) {
		case core.DeleteMany:
			n, err := s.deleteMany(ctx, tx, op)
			if err != nil {
				return core.BulkResult{}, fmt.Errorf("delete many: %w", err)
			}
			res.Deleted += n
		case core.ReplaceOne:
			r, err := s.replaceOne(ctx, tx, op)
			if err != nil {
				return core.BulkResult{}, fmt.Errorf("replace %s: %w", op.GEventID, err)
			}
			res.Add(r)
		default:
			return core.BulkResult{}, unsupportedOp(op)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.BulkResult{}, err
	}
	return res, nil
}

func (s *SQLStore) deleteMany(ctx context.Context, tx execer, op core.DeleteMany) (int, error) {
	if len(op.GEventIDs) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(op.GEventIDs)+1)
	args = append(args, op.User)
	for _, id := range op.GEventIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(op.GEventIDs)), ", ")
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = ? AND g_event_id <> '' AND g_event_id IN (%s)",
		quoteIdentifier(s.eventsTable), placeholders)

	result, err := tx.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func (s *SQLStore) replaceOne(ctx context.Context, tx execer, op core.ReplaceOne) (core.BulkResult, error) {
	e := op.Replacement
	updated := s.now().UnixMilli()

	query := fmt.Sprintf(`UPDATE %s SET title = ?, description = ?, priority = ?, origin = ?,
		start_ms = ?, end_ms = ?, is_all_day = ?, is_someday = ?, updated_ms = ?
		WHERE user_id = ? AND g_event_id = ?`, quoteIdentifier(s.eventsTable))
	result, err := tx.ExecContext(ctx, s.rebind(query),
		e.Title, e.Description, e.Priority, e.Origin,
		e.Start.UnixMilli(), e.End.UnixMilli(), boolInt(e.IsAllDay), boolInt(e.IsSomeday), updated,
		op.User, op.GEventID)
	if err != nil {
		return core.BulkResult{}, err
	}
	if n, err := result.RowsAffected(); err != nil {
		return core.BulkResult{}, err
	} else if n > 0 {
		return core.BulkResult{Modified: int(n)}, nil
	}
	if !op.Upsert {
		return core.BulkResult{}, nil
	}

	e.ID = uuid.NewString()
	e.User = op.User
	e.GEventID = op.GEventID
	if err := s.insertEvent(ctx, tx, e, updated); err != nil {
		return core.BulkResult{}, err
	}
	return core.BulkResult{Upserted: 1}, nil
}

func (s *SQLStore) insertEvent(ctx context.Context, tx execer, e core.CompassEvent, updated int64) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		quoteIdentifier(s.eventsTable), eventColumns)
	_, err := tx.ExecContext(ctx, s.rebind(query),
		e.ID, e.User, e.GEventID, e.Title, e.Description, e.Priority, e.Origin,
		e.Start.UnixMilli(), e.End.UnixMilli(), boolInt(e.IsAllDay), boolInt(e.IsSomeday), updated)
	return err
}

func (s *SQLStore) SaveEvent(ctx context.Context, event core.CompassEvent) (core.CompassEvent, error) {
	if err := s.ensureReady(); err != nil {
		return core.CompassEvent{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	now := s.now()
	event.UpdatedAt = time.UnixMilli(now.UnixMilli())

	if event.IsNew() {
		event.ID = uuid.NewString()
		if err := s.insertEvent(ctx, s.db, event, now.UnixMilli()); err != nil {
			return core.CompassEvent{}, err
		}
		return event, nil
	}

	query := fmt.Sprintf(`UPDATE %s SET user_id = ?, g_event_id = ?, title = ?, description = ?,
		priority = ?, origin = ?, start_ms = ?, end_ms = ?, is_all_day = ?, is_someday = ?, updated_ms = ?
		WHERE id = ?`, quoteIdentifier(s.eventsTable))
	result, err := s.db.ExecContext(ctx, s.rebind(query),
		event.User, event.GEventID, event.Title, event.Description, event.Priority, event.Origin,
		event.Start.UnixMilli(), event.End.UnixMilli(), boolInt(event.IsAllDay), boolInt(event.IsSomeday),
		now.UnixMilli(), event.ID)
	if err != nil {
		return core.CompassEvent{}, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return core.CompassEvent{}, err
	}
	if n == 0 {
		return core.CompassEvent{}, core.ErrNotFound
	}
	return event, nil
}

func (s *SQLStore) ListEvents(ctx context.Context, filter core.EventFilter) ([]core.CompassEvent, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	var where []string
	var args []any
	if filter.User != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.User)
	}
	if !filter.Start.IsZero() {
		where = append(where, "end_ms >= ?")
		args = append(args, filter.Start.UnixMilli())
	}
	if !filter.End.IsZero() {
		where = append(where, "start_ms < ?")
		args = append(args, filter.End.UnixMilli())
	}
	query := fmt.Sprintf("SELECT %s FROM %s", eventColumns, quoteIdentifier(s.eventsTable))
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_ms, id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.CompassEvent
	for rows.Next() {
		var (
			e                    core.CompassEvent
			startMs, endMs, upMs int64
			allDay, someday      int
		)
		if err := rows.Scan(&e.ID, &e.User, &e.GEventID, &e.Title, &e.Description, &e.Priority, &e.Origin,
			&startMs, &endMs, &allDay, &someday, &upMs); err != nil {
			return nil, err
		}
		e.Start = time.UnixMilli(startMs)
		e.End = time.UnixMilli(endMs)
		e.UpdatedAt = time.UnixMilli(upMs)
		e.IsAllDay = allDay != 0
		e.IsSomeday = someday != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetSync(ctx context.Context, user string) (core.SyncRecord, error) {
	if err := s.ensureReady(); err != nil {
		return core.SyncRecord{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT payload FROM %s WHERE user_id = ?", quoteIdentifier(s.syncsTable))
	var payload string
	err := s.db.QueryRowContext(ctx, s.rebind(query), user).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SyncRecord{}, core.ErrNotFound
	}
	if err != nil {
		return core.SyncRecord{}, err
	}
	var record core.SyncRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return core.SyncRecord{}, fmt.Errorf("decode sync record %s: %w", user, err)
	}
	return record, nil
}

// FindSyncByResource scans every record; there is one per user.
func (s *SQLStore) FindSyncByResource(ctx context.Context, resourceID string) (core.SyncRecord, error) {
	records, err := s.ListSyncs(ctx)
	if err != nil {
		return core.SyncRecord{}, err
	}
	for _, r := range records {
		if r.WatchIndex(resourceID) >= 0 {
			return r, nil
		}
	}
	return core.SyncRecord{}, core.ErrNotFound
}

func (s *SQLStore) SaveSync(ctx context.Context, record core.SyncRecord) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, payload, updated_ms)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id)
		DO UPDATE SET payload = excluded.payload, updated_ms = excluded.updated_ms`, quoteIdentifier(s.syncsTable))
	_, err = s.db.ExecContext(ctx, s.rebind(query), record.User, string(payload), s.now().UnixMilli())
	return err
}

func (s *SQLStore) DeleteSync(ctx context.Context, user string) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = ?", quoteIdentifier(s.syncsTable))
	_, err := s.db.ExecContext(ctx, s.rebind(query), user)
	return err
}

func (s *SQLStore) ListSyncs(ctx context.Context) ([]core.SyncRecord, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT user_id, payload FROM %s ORDER BY user_id", quoteIdentifier(s.syncsTable))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.SyncRecord
	for rows.Next() {
		var user, payload string
		if err := rows.Scan(&user, &payload); err != nil {
			return nil, err
		}
		var record core.SyncRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return nil, fmt.Errorf("decode sync record %s: %w", user, err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func quoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return `""`
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func unsupportedOp(op core.BulkOperation) error {
	return fmt.Errorf("unsupported bulk operation %T", op)
}
