// Package sqlstore implements store.TaskStore on database/sql for
// PostgreSQL (lib/pq) and SQLite (mattn/go-sqlite3).
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/store"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

const columns = `id, name, description, due_date, priority, assigned_to, status, last_completed, type, created_at, updated_at`

// Store is a TaskStore backed by a SQL database.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time

	schemaMu sync.Mutex
	migrated bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open prepares a connection pool. No connection is made yet, so an
// unreachable server does not prevent startup; the schema is created on the
// first successful call.
func Open(driverName, dsn string, opts ...Option) (*Store, error) {
	d, ok := dialects[driverName]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", driverName)
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", driverName, err)
	}
	if d.driver == SQLite {
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db, dialect: d, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping implements store.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return wrap("ping", 0, err)
	}
	return wrap("ping", 0, s.ensureSchema(ctx))
}

func (s *Store) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.migrated {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	s.migrated = true
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

// GetAll returns every task ordered by ID.
func (s *Store) GetAll(ctx context.Context) ([]task.Task, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, wrap("get_all", 0, err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM tasks ORDER BY id`)
	if err != nil {
		return nil, wrap("get_all", 0, err)
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, wrap("get_all", 0, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("get_all", 0, err)
	}
	return out, nil
}

// GetByID returns a single task.
func (s *Store) GetByID(ctx context.Context, id int) (*task.Task, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, wrap("get", id, err)
	}
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+columns+` FROM tasks WHERE id = ?`), id)
	t, err := scanTask(row)
	if err != nil {
		return nil, wrap("get", id, err)
	}
	return &t, nil
}

// Add inserts t and returns it with the generated ID.
func (s *Store) Add(ctx context.Context, t task.Task) (task.Task, error) {
	if err := task.Validate(&t); err != nil {
		return task.Task{}, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return task.Task{}, wrap("add", 0, err)
	}
	task.UpdateTimestamps(&t, s.now().UTC())

	query := `INSERT INTO tasks (name, description, due_date, priority, assigned_to, status, last_completed, type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{
		t.Name, t.Description, dateArg(t.Due), t.Priority, t.AssignedTo,
		statusArg(t.Status), dateArg(t.LastCompleted), t.Type, t.Created, t.Updated,
	}

	if s.dialect.returning {
		var id int
		err := s.db.QueryRowContext(ctx, s.dialect.rebind(query+` RETURNING id`), args...).Scan(&id)
		if err != nil {
			return task.Task{}, wrap("add", 0, err)
		}
		t.ID = id
		return t, nil
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return task.Task{}, wrap("add", 0, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return task.Task{}, wrap("add", 0, err)
	}
	t.ID = int(id)
	return t, nil
}

// Update overwrites every column of an existing task except created_at.
func (s *Store) Update(ctx context.Context, t task.Task) error {
	if err := task.Validate(&t); err != nil {
		return err
	}
	res, err := s.exec(ctx, `UPDATE tasks SET name = ?, description = ?, due_date = ?, priority = ?,
		assigned_to = ?, status = ?, last_completed = ?, type = ?, updated_at = ? WHERE id = ?`,
		t.Name, t.Description, dateArg(t.Due), t.Priority, t.AssignedTo,
		statusArg(t.Status), dateArg(t.LastCompleted), t.Type, s.now().UTC(), t.ID)
	return affected("update", t.ID, res, err)
}

// Delete removes a task.
func (s *Store) Delete(ctx context.Context, id int) error {
	res, err := s.exec(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return affected("delete", id, res, err)
}

// SetStatus updates the status column. Completing a task stamps last_completed.
func (s *Store) SetStatus(ctx context.Context, id int, st task.Status) error {
	now := s.now()
	if st == task.Completed {
		res, err := s.exec(ctx, `UPDATE tasks SET status = ?, last_completed = ?, updated_at = ? WHERE id = ?`,
			statusArg(st), date.FromTime(now).String(), now.UTC(), id)
		return affected("set_status", id, res, err)
	}
	res, err := s.exec(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		statusArg(st), now.UTC(), id)
	return affected("set_status", id, res, err)
}

// MarkOverdue implements store.BulkOverdueMarker with a single UPDATE.
func (s *Store) MarkOverdue(ctx context.Context, today date.Date) (int, error) {
	res, err := s.exec(ctx, `UPDATE tasks SET status = 'OVERDUE', updated_at = ?
		WHERE status IN ('ACTIVE', 'POSTPONED') AND due_date IS NOT NULL AND due_date < ?`,
		s.now().UTC(), today.String())
	if err != nil {
		return 0, wrap("mark_overdue", 0, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("mark_overdue", 0, err)
	}
	return int(n), nil
}

func affected(op string, id int, res sql.Result, err error) error {
	if err != nil {
		return wrap(op, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, id, err)
	}
	if n == 0 {
		return store.NotFound(op, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (task.Task, error) {
	var (
		t                            task.Task
		description, assignedTo, typ sql.NullString
		status                       string
		due, lastCompleted           sql.NullTime
	)
	err := sc.Scan(&t.ID, &t.Name, &description, &due, &t.Priority, &assignedTo,
		&status, &lastCompleted, &typ, &t.Created, &t.Updated)
	if err != nil {
		return task.Task{}, err
	}
	st, err := task.ParseStatus(status)
	if err != nil {
		return task.Task{}, err
	}
	t.Status = st
	t.Description = description.String
	t.AssignedTo = assignedTo.String
	t.Type = typ.String
	if due.Valid {
		t.Due = date.FromTime(due.Time).Ptr()
	}
	if lastCompleted.Valid {
		t.LastCompleted = date.FromTime(lastCompleted.Time).Ptr()
	}
	return t, nil
}

func dateArg(d *date.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func statusArg(s task.Status) string {
	return strings.ToUpper(string(s))
}
