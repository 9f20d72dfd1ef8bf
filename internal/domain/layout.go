package domain

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout maps the fixed storage categories onto a data root. Permanent files
// live under original/, compressed/ and thumbnail/; queue/ holds staged
// uploads and per-task scratch directories. Names are derived solely from
// generated ids, never from user input.
type Layout struct {
	Root string
}

func (l Layout) OriginalDir() string   { return filepath.Join(l.Root, string(CategoryOriginal)) }
func (l Layout) CompressedDir() string { return filepath.Join(l.Root, string(CategoryCompressed)) }
func (l Layout) ThumbnailDir() string  { return filepath.Join(l.Root, string(CategoryThumbnail)) }
func (l Layout) QueueDir() string      { return filepath.Join(l.Root, "queue") }

// QueuePath is where a not-yet-processed upload is staged, keyed by task id.
func (l Layout) QueuePath(taskID, ext string) string {
	return filepath.Join(l.QueueDir(), taskID+"."+ext)
}

// ScratchDir is the per-task working directory, discarded after relocation.
func (l Layout) ScratchDir(taskID string) string {
	return filepath.Join(l.QueueDir(), taskID+".work")
}

// FinalPath is the permanent location of a placed file: {category}/{outputID}.{ext}.
func (l Layout) FinalPath(category RenditionCategory, outputID, ext string) string {
	return filepath.Join(l.Root, string(category), outputID+"."+ext)
}

func (l Layout) EnsureDirs() error {
	for _, dir := range []string{l.OriginalDir(), l.CompressedDir(), l.ThumbnailDir(), l.QueueDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
