package service

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/bnema/mediaq/internal/domain"
)

const orphanNote = "orphaned by process restart"

// Recover reconciles tasks a previous process instance left non-terminal:
// every queued or processing record is marked failed with an orphan note and
// its staged upload and scratch space are deleted. It holds the same gate as
// Advance so it cannot race a submission-triggered pop. A store error here is
// fatal to startup.
func (q *Queue) Recover() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	orphans, err := q.store.ListUnfinished()
	if err != nil {
		return fmt.Errorf("scan unfinished tasks: %w", err)
	}

	for _, task := range orphans {
		task.AppendNote(orphanNote)
		task.Status = domain.TaskStatusFailed
		if err := q.store.MarkFailed(task.ID, task.Notes); err != nil {
			return fmt.Errorf("mark orphan %s failed: %w", task.ID, err)
		}

		_ = os.Remove(q.layout.QueuePath(task.ID, task.SourceExt))
		_ = os.RemoveAll(q.layout.ScratchDir(task.ID))

		q.publish(task, domain.EventChanged)

		log.Warn().Str("task_id", task.ID).Msg("orphaned task failed during recovery")
	}

	if len(orphans) > 0 {
		log.Info().Int("count", len(orphans)).Msg("crash recovery complete")
	}
	return nil
}
