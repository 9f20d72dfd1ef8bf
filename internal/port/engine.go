package port

import (
	"context"

	"github.com/bnema/mediaq/internal/domain"
)

// ProgressFunc receives percentage progress (0-100). Implementations report
// forward-moving values only.
type ProgressFunc func(percent int)

// Engine runs the transcoding pipeline for one task, writing every rendition
// into scratchDir. Renditions are named after outputID so the relocator can
// place them without consulting the original filename.
type Engine interface {
	Process(ctx context.Context, target domain.TargetFormat, srcPath, scratchDir, outputID string, progress ProgressFunc) (*domain.Output, error)
}
