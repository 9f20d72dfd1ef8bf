package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusFailed     TaskStatus = "failed"
)

// CreatePayload describes the domain object to materialize once the task's
// renditions are placed. The queue carries it through untouched.
type CreatePayload struct {
	PostID  int64  `json:"post_id"`
	Caption string `json:"caption"`
}

// Task is the unit of queued transcoding work. A record is mutated only by
// the queue while it holds the single processing slot, so there is never more
// than one writer.
type Task struct {
	ID            string        `json:"id"`
	Status        TaskStatus    `json:"status"`
	Progress      int           `json:"progress"`
	Notes         string        `json:"notes"`
	SourceExt     string        `json:"source_ext"`
	SourceKind    Kind          `json:"source_kind"`
	Target        TargetFormat  `json:"target"`
	Payload       CreatePayload `json:"payload"`
	CreatedItemID int64         `json:"created_item_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func NewTask(ft FileType, payload CreatePayload) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:         uuid.NewString(),
		Status:     TaskStatusQueued,
		SourceExt:  ft.Ext,
		SourceKind: ft.Kind,
		Target:     ft.Target,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (t *Task) Terminal() bool {
	return t.Status == TaskStatusDone || t.Status == TaskStatusFailed
}

// AppendNote adds a diagnostic line to the task's notes. Notes are
// append-only; earlier entries are never rewritten.
func (t *Task) AppendNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if t.Notes == "" {
		t.Notes = note
		return
	}
	t.Notes += "\n" + note
}

type EventKind string

const (
	EventCreated EventKind = "CREATED"
	EventChanged EventKind = "CHANGED"
)

// Event is what the progress sink delivers to subscribers. Delivery is
// at-least-once; consumers must tolerate duplicate terminal events.
type Event struct {
	TaskID   string     `json:"task_id"`
	Kind     EventKind  `json:"kind"`
	Status   TaskStatus `json:"status"`
	Progress int        `json:"progress"`
	Notes    string     `json:"notes,omitempty"`
}
