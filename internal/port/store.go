package port

import "github.com/bnema/mediaq/internal/domain"

// TaskStore persists task records and their lifecycle transitions.
type TaskStore interface {
	Save(t *domain.Task) error
	Get(id string) (*domain.Task, error)
	// OldestQueued returns the next task in FIFO submission order, or
	// (nil, nil) when nothing is pending.
	OldestQueued() (*domain.Task, error)
	MarkProcessing(id string) error
	UpdateProgress(id string, progress int) error
	MarkDone(id string, itemID int64) error
	MarkFailed(id string, notes string) error
	// ListUnfinished returns every queued or processing record, oldest first.
	ListUnfinished() ([]*domain.Task, error)
}

// ItemStore materializes the caller-supplied payload into the domain store
// once a task's renditions are placed, and rolls it back on later failure.
type ItemStore interface {
	Materialize(t *domain.Task, out *domain.Output) (int64, error)
	Rollback(itemID int64) error
	GetItem(id int64) (*domain.Item, error)
}
