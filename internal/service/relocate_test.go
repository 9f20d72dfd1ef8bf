package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/mediaq/internal/domain"
)

func newRelocateFixture(t *testing.T) (*Relocator, domain.Layout, *domain.Task) {
	t.Helper()
	layout := domain.Layout{Root: t.TempDir()}
	require.NoError(t, layout.EnsureDirs())

	task := domain.NewTask(jpegType(), domain.CreatePayload{})
	require.NoError(t, os.WriteFile(layout.QueuePath(task.ID, task.SourceExt), []byte("original"), 0644))
	require.NoError(t, os.MkdirAll(layout.ScratchDir(task.ID), 0755))
	return NewRelocator(layout), layout, task
}

func scratchRendition(t *testing.T, layout domain.Layout, task *domain.Task, cat domain.RenditionCategory, name, ext string) domain.Rendition {
	t.Helper()
	path := filepath.Join(layout.ScratchDir(task.ID), name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0644))
	return domain.Rendition{Category: cat, Ext: ext, ScratchPath: path}
}

func TestRelocator_PlaceMovesWholeBatch(t *testing.T) {
	r, layout, task := newRelocateFixture(t)

	out := &domain.Output{ID: "out-1", Width: 640, Height: 480}
	out.Renditions = []domain.Rendition{
		scratchRendition(t, layout, task, domain.CategoryCompressed, "out-1.jpg", "jpg"),
		scratchRendition(t, layout, task, domain.CategoryCompressed, "out-1.webp", "webp"),
		scratchRendition(t, layout, task, domain.CategoryThumbnail, "out-1.thumb.jpg", "jpg"),
	}

	require.NoError(t, r.Place(task, out))

	assert.FileExists(t, layout.FinalPath(domain.CategoryOriginal, "out-1", "jpg"))
	assert.FileExists(t, layout.FinalPath(domain.CategoryCompressed, "out-1", "jpg"))
	assert.FileExists(t, layout.FinalPath(domain.CategoryCompressed, "out-1", "webp"))
	assert.FileExists(t, layout.FinalPath(domain.CategoryThumbnail, "out-1", "jpg"))

	assert.NoFileExists(t, layout.QueuePath(task.ID, task.SourceExt))
	assert.NoDirExists(t, layout.ScratchDir(task.ID))
}

func TestRelocator_PartialBatchIsUndone(t *testing.T) {
	r, layout, task := newRelocateFixture(t)

	out := &domain.Output{ID: "out-2"}
	out.Renditions = []domain.Rendition{
		scratchRendition(t, layout, task, domain.CategoryCompressed, "out-2.jpg", "jpg"),
		// Missing scratch file: this move must fail mid-batch.
		{Category: domain.CategoryThumbnail, Ext: "jpg", ScratchPath: filepath.Join(layout.ScratchDir(task.ID), "out-2.thumb.jpg")},
	}

	err := r.Place(task, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relocate")

	// Nothing placed earlier in the batch survives the failure.
	assert.NoFileExists(t, layout.FinalPath(domain.CategoryOriginal, "out-2", "jpg"))
	assert.NoFileExists(t, layout.FinalPath(domain.CategoryCompressed, "out-2", "jpg"))
	assert.NoDirExists(t, layout.ScratchDir(task.ID))
}

func TestRelocator_RemoveDeletesPlacedFiles(t *testing.T) {
	r, layout, task := newRelocateFixture(t)

	out := &domain.Output{ID: "out-3"}
	out.Renditions = []domain.Rendition{
		scratchRendition(t, layout, task, domain.CategoryCompressed, "out-3.webp", "webp"),
	}
	require.NoError(t, r.Place(task, out))

	r.Remove(task, out)

	assert.NoFileExists(t, layout.FinalPath(domain.CategoryOriginal, "out-3", "jpg"))
	assert.NoFileExists(t, layout.FinalPath(domain.CategoryCompressed, "out-3", "webp"))
}

func TestMoveFile_CopyFallbackPreservesContent(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	src := filepath.Join(srcDir, "a.bin")
	dst := filepath.Join(dstDir, "b.bin")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))

	require.NoError(t, moveFile(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
	assert.NoFileExists(t, src)
}
