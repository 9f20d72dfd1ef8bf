package port

import (
	"io"

	"github.com/bnema/mediaq/internal/domain"
)

// Classifier determines an upload's true type from its leading bytes. It must
// run before any task record is created so invalid uploads never enter the
// queue.
type Classifier interface {
	Classify(r io.ReadSeeker) (domain.FileType, error)
}
