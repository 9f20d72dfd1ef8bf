package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/mediaq/internal/domain"
	"github.com/bnema/mediaq/internal/service"
)

type fakeTaskService struct {
	submitErr error
	tasks     map[string]*domain.Task
	submitted []domain.CreatePayload
}

func newFakeTaskService() *fakeTaskService {
	return &fakeTaskService{tasks: make(map[string]*domain.Task)}
}

func (s *fakeTaskService) Submit(r io.ReadSeeker, payload domain.CreatePayload) (*domain.Task, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	s.submitted = append(s.submitted, payload)
	task := domain.NewTask(domain.FileType{Ext: "jpg", MIME: "image/jpeg", Kind: domain.KindImage, Target: domain.FormatImage}, payload)
	s.tasks[task.ID] = task
	return task, nil
}

func (s *fakeTaskService) Get(id string) (*domain.Task, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return task, nil
}

func newTestServer(t *testing.T, svc TaskService) (*Server, domain.Layout) {
	t.Helper()
	layout := domain.Layout{Root: t.TempDir()}
	require.NoError(t, layout.EnsureDirs())
	return NewServer(svc, service.NewEventBus(), layout, 10), layout
}

func multipartUpload(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload_AcceptsAndReturnsQueuedTask(t *testing.T) {
	svc := newFakeTaskService()
	server, _ := newTestServer(t, svc)

	req := multipartUpload(t, map[string]string{"post_id": "42", "caption": "hello"}, "photo.jpg", []byte("jpeg bytes"))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var task domain.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, domain.TaskStatusQueued, task.Status)
	assert.NotEmpty(t, task.ID)

	require.Len(t, svc.submitted, 1)
	assert.Equal(t, int64(42), svc.submitted[0].PostID)
	assert.Equal(t, "hello", svc.submitted[0].Caption)
}

func TestUpload_RejectionStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		submitErr  error
		wantStatus int
	}{
		{name: "unrecognized bytes", submitErr: domain.ErrUnrecognizedType, wantStatus: http.StatusBadRequest},
		{name: "recognized but unsupported", submitErr: domain.ErrUnsupportedType, wantStatus: http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeTaskService()
			svc.submitErr = tt.submitErr
			server, _ := newTestServer(t, svc)

			req := multipartUpload(t, nil, "file.bin", []byte("???"))
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestUpload_MissingFileField(t *testing.T) {
	server, _ := newTestServer(t, newFakeTaskService())

	req := multipartUpload(t, map[string]string{"caption": "no file"}, "", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_InvalidPostID(t *testing.T) {
	server, _ := newTestServer(t, newFakeTaskService())

	req := multipartUpload(t, map[string]string{"post_id": "abc"}, "photo.jpg", []byte("img"))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskStatus(t *testing.T) {
	svc := newFakeTaskService()
	server, _ := newTestServer(t, svc)

	task, err := svc.Submit(bytes.NewReader(nil), domain.CreatePayload{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/"+task.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, task.ID, got.ID)

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFiles_ServesPlacedRenditions(t *testing.T) {
	server, layout := newTestServer(t, newFakeTaskService())

	path := filepath.Join(layout.CompressedDir(), "out-1.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0644))

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/compressed/out-1.jpg", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg", rec.Body.String())
}

func TestFiles_NeverServesQueueDirectory(t *testing.T) {
	server, layout := newTestServer(t, newFakeTaskService())
	require.NoError(t, os.WriteFile(filepath.Join(layout.QueueDir(), "staged.jpg"), []byte("staged"), 0644))

	for _, target := range []string{
		"/files/queue/staged.jpg",
		"/files/compressed/..%2Fqueue%2Fstaged.jpg",
	} {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.NotEqual(t, http.StatusOK, rec.Code, "must not serve %s", target)
	}
}

func TestFiles_UnknownCategory(t *testing.T) {
	server, _ := newTestServer(t, newFakeTaskService())

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/secret/x.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
