package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bnema/mediaq/internal/domain"
	"github.com/bnema/mediaq/internal/service"
)

type SSEHandler struct {
	eventBus *service.EventBus
	taskSvc  TaskService
}

func NewSSEHandler(eventBus *service.EventBus, taskSvc TaskService) *SSEHandler {
	return &SSEHandler{
		eventBus: eventBus,
		taskSvc:  taskSvc,
	}
}

// sseWrite writes one SSE event with a JSON payload.
func sseWrite(w http.ResponseWriter, eventName string, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventName, body)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// sendKeepAlive writes an SSE comment to keep the connection active.
func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func taskEvent(task *domain.Task, kind domain.EventKind) domain.Event {
	return domain.Event{
		TaskID:   task.ID,
		Kind:     kind,
		Status:   task.Status,
		Progress: task.Progress,
		Notes:    task.Notes,
	}
}

// Events streams one task's lifecycle to the client. The current state is
// always sent first; the stream closes once a terminal event is delivered.
func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			http.Error(w, "missing task id", http.StatusBadRequest)
			return
		}

		task, err := h.taskSvc.Get(id)
		if err != nil {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		ch := h.eventBus.Subscribe(id)
		defer h.eventBus.Unsubscribe(id, ch)

		// Re-fetch after subscribing: a terminal transition between the
		// lookup above and the subscription would otherwise never reach this
		// stream and the client would idle on keep-alives.
		if fresh, err := h.taskSvc.Get(id); err == nil {
			task = fresh
		}

		sseWrite(w, "task", taskEvent(task, domain.EventChanged))
		if task.Terminal() {
			return
		}

		ctx := r.Context()
		keepAlive := time.NewTicker(15 * time.Second)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case event, ok := <-ch:
				if !ok {
					return
				}
				sseWrite(w, "task", event)
				if event.Status == domain.TaskStatusDone || event.Status == domain.TaskStatusFailed {
					return
				}
			}
		}
	}
}
