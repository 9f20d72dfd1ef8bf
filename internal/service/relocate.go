package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bnema/mediaq/internal/domain"
)

// Relocator moves engine output from scratch space into the permanent
// category directories. A task's files count as placed only when the whole
// batch succeeded; a partial batch is undone and reported as a failure.
type Relocator struct {
	layout domain.Layout
}

func NewRelocator(layout domain.Layout) *Relocator {
	return &Relocator{layout: layout}
}

type fileMove struct {
	src string
	dst string
}

// Place moves the staged original and every rendition as one batch. The
// scratch directory is removed regardless of outcome.
func (r *Relocator) Place(task *domain.Task, out *domain.Output) error {
	defer func() {
		_ = os.RemoveAll(r.layout.ScratchDir(task.ID))
	}()

	moves := []fileMove{{
		src: r.layout.QueuePath(task.ID, task.SourceExt),
		dst: r.layout.FinalPath(domain.CategoryOriginal, out.ID, task.SourceExt),
	}}
	for _, rend := range out.Renditions {
		moves = append(moves, fileMove{
			src: rend.ScratchPath,
			dst: r.layout.FinalPath(rend.Category, out.ID, rend.Ext),
		})
	}

	var placed []string
	for _, mv := range moves {
		if err := moveFile(mv.src, mv.dst); err != nil {
			for _, p := range placed {
				_ = os.Remove(p)
			}
			return fmt.Errorf("relocate %s: %w", filepath.Base(mv.dst), err)
		}
		placed = append(placed, mv.dst)
	}
	return nil
}

// Remove deletes a task's placed files after a failure downstream of Place.
func (r *Relocator) Remove(task *domain.Task, out *domain.Output) {
	_ = os.Remove(r.layout.FinalPath(domain.CategoryOriginal, out.ID, task.SourceExt))
	for _, rend := range out.Renditions {
		_ = os.Remove(r.layout.FinalPath(rend.Category, out.ID, rend.Ext))
	}
}

// moveFile renames, falling back to copy+remove when src and dst live on
// different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
