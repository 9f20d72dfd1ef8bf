package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bnema/mediaq/internal/domain"
	"github.com/bnema/mediaq/internal/infrastructure/logger"
	"github.com/bnema/mediaq/internal/port"
)

// EventPublisher is the progress sink the queue pushes task events into.
type EventPublisher interface {
	Publish(taskID string, event domain.Event)
}

// Queue admits classified uploads and runs the transcoding pipeline for at
// most one task at a time. The mutex guards only the pop-and-mark step; the
// pipeline itself runs outside the lock so submissions never wait on an
// encode.
type Queue struct {
	store      port.TaskStore
	items      port.ItemStore
	classifier port.Classifier
	engine     port.Engine
	relocator  *Relocator
	bus        EventPublisher
	layout     domain.Layout

	baseCtx context.Context

	mu     sync.Mutex
	active bool
}

func NewQueue(
	store port.TaskStore,
	items port.ItemStore,
	classifier port.Classifier,
	engine port.Engine,
	relocator *Relocator,
	bus EventPublisher,
	layout domain.Layout,
) *Queue {
	return &Queue{
		store:      store,
		items:      items,
		classifier: classifier,
		engine:     engine,
		relocator:  relocator,
		bus:        bus,
		layout:     layout,
		baseCtx:    context.Background(),
	}
}

// Start reconciles orphans from a previous process instance, then begins
// draining the queue. It must run before the ingress accepts submissions.
func (q *Queue) Start(ctx context.Context) error {
	q.baseCtx = ctx
	if err := q.Recover(); err != nil {
		return err
	}
	q.Advance()
	return nil
}

// Submit classifies the upload, stages it under the queue directory and
// persists a QUEUED record. Classification failures return synchronously and
// leave no record behind.
func (q *Queue) Submit(r io.ReadSeeker, payload domain.CreatePayload) (*domain.Task, error) {
	ft, err := q.classifier.Classify(r)
	if err != nil {
		return nil, err
	}

	task := domain.NewTask(ft, payload)

	stagedPath := q.layout.QueuePath(task.ID, task.SourceExt)
	if err := stageUpload(r, stagedPath); err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	if err := q.store.Save(task); err != nil {
		_ = os.Remove(stagedPath)
		return nil, fmt.Errorf("persist task: %w", err)
	}

	log.Info().
		Str("task_id", task.ID).
		Str("mime", ft.MIME).
		Str("target", string(task.Target)).
		Int64("post_id", payload.PostID).
		Msg("task queued")

	q.publish(task, domain.EventCreated)
	q.Advance()
	return task, nil
}

// Get returns the current task record.
func (q *Queue) Get(id string) (*domain.Task, error) {
	return q.store.Get(id)
}

// Advance pops the oldest queued task and starts its pipeline, unless a run
// is already active or nothing is pending. Safe to call speculatively from
// any trigger point; redundant calls are no-ops.
func (q *Queue) Advance() {
	q.mu.Lock()
	if q.active {
		q.mu.Unlock()
		return
	}

	task, err := q.store.OldestQueued()
	if err != nil {
		q.mu.Unlock()
		log.Error().Err(err).Msg("queue scan failed")
		return
	}
	if task == nil {
		q.mu.Unlock()
		return
	}

	if err := q.store.MarkProcessing(task.ID); err != nil {
		q.mu.Unlock()
		log.Error().Err(err).Str("task_id", task.ID).Msg("mark processing failed")
		return
	}
	task.Status = domain.TaskStatusProcessing
	q.active = true
	q.mu.Unlock()

	q.publish(task, domain.EventChanged)
	go q.run(task)
}

func (q *Queue) run(task *domain.Task) {
	defer func() {
		q.mu.Lock()
		q.active = false
		q.mu.Unlock()
		q.Advance()
	}()

	log.Info().Str("task_id", task.ID).Str("target", string(task.Target)).Msg("processing started")

	scratchDir := q.layout.ScratchDir(task.ID)
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		q.fail(task, fmt.Errorf("create scratch dir: %w", err))
		return
	}

	outputID := uuid.NewString()
	srcPath := q.layout.QueuePath(task.ID, task.SourceExt)

	out, err := q.engine.Process(q.baseCtx, task.Target, srcPath, scratchDir, outputID, q.progressFunc(task))
	if err != nil {
		_ = os.RemoveAll(scratchDir)
		q.fail(task, err)
		return
	}

	if err := validateOutput(task.Target, out); err != nil {
		_ = os.RemoveAll(scratchDir)
		q.fail(task, err)
		return
	}

	if err := q.relocator.Place(task, out); err != nil {
		q.fail(task, err)
		return
	}

	itemID, err := q.items.Materialize(task, out)
	if err != nil {
		q.relocator.Remove(task, out)
		q.fail(task, fmt.Errorf("materialize item: %w", err))
		return
	}

	if err := q.store.MarkDone(task.ID, itemID); err != nil {
		// Roll the partially created item back so a FAILED task never
		// references a live domain object.
		if rbErr := q.items.Rollback(itemID); rbErr != nil {
			log.Error().Err(rbErr).Str("task_id", task.ID).Msg("item rollback failed")
		}
		q.relocator.Remove(task, out)
		q.fail(task, fmt.Errorf("finalize task: %w", err))
		return
	}

	task.Status = domain.TaskStatusDone
	task.Progress = 100
	task.CreatedItemID = itemID
	q.publish(task, domain.EventChanged)

	log.Info().
		Str("task_id", task.ID).
		Str("output_id", outputID).
		Int64("item_id", itemID).
		Int("renditions", len(out.Renditions)).
		Msg("processing done")
}

// validateOutput checks the engine produced the full rendition matrix for the
// target format. A short set must never reach relocation: placed-but-partial
// renditions would be served as if complete.
func validateOutput(target domain.TargetFormat, out *domain.Output) error {
	wantCompressed, wantThumbnail := target.ExpectedRenditions()
	var compressed, thumbnail int
	for _, r := range out.Renditions {
		switch r.Category {
		case domain.CategoryCompressed:
			compressed++
		case domain.CategoryThumbnail:
			thumbnail++
		}
	}
	if compressed != wantCompressed || thumbnail != wantThumbnail {
		return fmt.Errorf("incomplete rendition set for %s: got %d compressed, %d thumbnail, want %d and %d",
			target, compressed, thumbnail, wantCompressed, wantThumbnail)
	}
	return nil
}

// progressFunc persists and publishes forward-moving progress for the task
// currently holding the processing slot.
func (q *Queue) progressFunc(task *domain.Task) port.ProgressFunc {
	var mu sync.Mutex
	last := 0
	return func(pct int) {
		mu.Lock()
		defer mu.Unlock()
		if pct <= last || pct > 100 {
			return
		}
		last = pct
		task.Progress = pct
		if err := q.store.UpdateProgress(task.ID, pct); err != nil {
			log.Error().Err(err).Str("task_id", task.ID).Msg("progress update failed")
		}
		q.publish(task, domain.EventChanged)
	}
}

// fail records the terminal failure and cleans the task's transient files.
// The caller's deferred advance keeps the queue moving.
func (q *Queue) fail(task *domain.Task, cause error) {
	task.Status = domain.TaskStatusFailed
	task.AppendNote(cause.Error())

	if err := q.store.MarkFailed(task.ID, task.Notes); err != nil {
		log.Error().Err(err).Str("task_id", task.ID).Msg("mark failed errored")
	}

	_ = os.Remove(q.layout.QueuePath(task.ID, task.SourceExt))
	_ = os.RemoveAll(q.layout.ScratchDir(task.ID))

	q.publish(task, domain.EventChanged)

	log.Error().
		Str("task_id", task.ID).
		Str("cause", logger.SanitizeForLog(cause.Error())).
		Msg("processing failed")
}

func (q *Queue) publish(task *domain.Task, kind domain.EventKind) {
	if q.bus == nil {
		return
	}
	q.bus.Publish(task.ID, domain.Event{
		TaskID:   task.ID,
		Kind:     kind,
		Status:   task.Status,
		Progress: task.Progress,
		Notes:    task.Notes,
	})
}

func stageUpload(r io.Reader, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}
