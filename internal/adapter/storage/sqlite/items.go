package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/mediaq/internal/domain"
	"github.com/bnema/mediaq/internal/port"
)

// Materialize creates the domain item described by the task's payload once
// every rendition has been placed.
func (s *Store) Materialize(t *domain.Task, out *domain.Output) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO items
		(post_id, caption, output_id, target_format, width, height, aspect_ratio, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Payload.PostID, t.Payload.Caption, out.ID, string(t.Target),
		out.Width, out.Height, out.AspectRatio, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("item id: %w", err)
	}
	return id, nil
}

// Rollback removes a partially created item after a downstream failure.
func (s *Store) Rollback(itemID int64) error {
	_, err := s.db.Exec(`DELETE FROM items WHERE id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func (s *Store) GetItem(id int64) (*domain.Item, error) {
	var it domain.Item
	var target string
	err := s.db.QueryRow(`SELECT id, post_id, caption, output_id, target_format,
		width, height, aspect_ratio, created_at FROM items WHERE id = ?`, id).
		Scan(&it.ID, &it.PostID, &it.Caption, &it.OutputID, &target,
			&it.Width, &it.Height, &it.AspectRatio, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}
	it.Target = domain.TargetFormat(target)
	return &it, nil
}

var _ port.ItemStore = (*Store)(nil)
