package domain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout_Paths(t *testing.T) {
	l := Layout{Root: "/data"}

	assert.Equal(t, "/data/queue/task-1.mp4", l.QueuePath("task-1", "mp4"))
	assert.Equal(t, "/data/queue/task-1.work", l.ScratchDir("task-1"))
	assert.Equal(t, "/data/original/out-1.mp4", l.FinalPath(CategoryOriginal, "out-1", "mp4"))
	assert.Equal(t, "/data/compressed/out-1.webm", l.FinalPath(CategoryCompressed, "out-1", "webm"))
	assert.Equal(t, "/data/thumbnail/out-1.webp", l.FinalPath(CategoryThumbnail, "out-1", "webp"))
}

func TestLayout_EnsureDirs(t *testing.T) {
	l := Layout{Root: filepath.Join(t.TempDir(), "nested", "data")}
	require.NoError(t, l.EnsureDirs())

	for _, dir := range []string{l.OriginalDir(), l.CompressedDir(), l.ThumbnailDir(), l.QueueDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// Idempotent on an existing tree.
	require.NoError(t, l.EnsureDirs())
}
