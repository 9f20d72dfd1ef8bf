package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"

	"github.com/bnema/mediaq/internal/domain"
	"github.com/bnema/mediaq/internal/port"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA foreign_keys = ON",
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

func NewStore(dataDir string) (*Store, error) {
	registerHook()

	dbPath := filepath.Join(dataDir, "mediaq.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite (WAL allows concurrent reads but only one writer)
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const taskColumns = `id, status, progress, notes, source_ext, source_kind, target_format,
	post_id, caption, created_item_id, created_at, updated_at`

func (s *Store) Save(t *domain.Task) error {
	_, err := s.db.Exec(`INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Status), t.Progress, t.Notes, t.SourceExt, string(t.SourceKind),
		string(t.Target), t.Payload.PostID, t.Payload.Caption,
		nullableID(t.CreatedItemID), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *Store) Get(id string) (*domain.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func (s *Store) OldestQueued() (*domain.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks
		WHERE status = ? ORDER BY created_at, id LIMIT 1`, string(domain.TaskStatusQueued))
	t, err := scanTask(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return t, err
}

func (s *Store) MarkProcessing(id string) error {
	return s.exec(`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(domain.TaskStatusProcessing), time.Now().UTC(), id)
}

func (s *Store) UpdateProgress(id string, progress int) error {
	return s.exec(`UPDATE tasks SET progress = ?, updated_at = ? WHERE id = ?`,
		progress, time.Now().UTC(), id)
}

func (s *Store) MarkDone(id string, itemID int64) error {
	return s.exec(`UPDATE tasks SET status = ?, progress = 100, created_item_id = ?, updated_at = ?
		WHERE id = ?`,
		string(domain.TaskStatusDone), itemID, time.Now().UTC(), id)
}

func (s *Store) MarkFailed(id string, notes string) error {
	return s.exec(`UPDATE tasks SET status = ?, notes = ?, updated_at = ? WHERE id = ?`,
		string(domain.TaskStatusFailed), notes, time.Now().UTC(), id)
}

func (s *Store) ListUnfinished() ([]*domain.Task, error) {
	rows, err := s.db.Query(`SELECT `+taskColumns+` FROM tasks
		WHERE status IN (?, ?) ORDER BY created_at, id`,
		string(domain.TaskStatusQueued), string(domain.TaskStatusProcessing))
	if err != nil {
		return nil, fmt.Errorf("list unfinished: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) exec(query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var status, kind, target string
	var itemID sql.NullInt64
	err := row.Scan(&t.ID, &status, &t.Progress, &t.Notes, &t.SourceExt, &kind, &target,
		&t.Payload.PostID, &t.Payload.Caption, &itemID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.Status = domain.TaskStatus(status)
	t.SourceKind = domain.Kind(kind)
	t.Target = domain.TargetFormat(target)
	if itemID.Valid {
		t.CreatedItemID = itemID.Int64
	}
	return &t, nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

var _ port.TaskStore = (*Store)(nil)
