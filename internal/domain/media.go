package domain

import "math"

// Kind is the coarse media category used to route to a pipeline. GIF uploads
// are routed as video but remembered as their own target format.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// TargetFormat is the final delivery format family of a task.
type TargetFormat string

const (
	FormatImage TargetFormat = "IMAGE"
	FormatVideo TargetFormat = "VIDEO"
	FormatGIF   TargetFormat = "GIF"
)

// FileType is the result of sniffing an upload's leading bytes.
type FileType struct {
	Ext    string
	MIME   string
	Kind   Kind
	Target TargetFormat
}

type RenditionCategory string

const (
	CategoryOriginal   RenditionCategory = "original"
	CategoryCompressed RenditionCategory = "compressed"
	CategoryThumbnail  RenditionCategory = "thumbnail"
)

// Rendition is one encoded output file sitting in scratch space, waiting to
// be placed at {category}/{outputID}.{ext}.
type Rendition struct {
	Category    RenditionCategory
	Ext         string
	ScratchPath string
}

// Output is everything a pipeline run produces for one task.
type Output struct {
	ID          string
	Width       int
	Height      int
	AspectRatio int
	Renditions  []Rendition
}

// ExpectedRenditions returns the fixed rendition matrix for a target format:
// compressed count, thumbnail count. GIF carries one extra palette-optimized
// rendition inside its compressed count.
func (f TargetFormat) ExpectedRenditions() (compressed, thumbnail int) {
	switch f {
	case FormatGIF:
		return 3, 2
	default:
		return 2, 2
	}
}

// AspectRatio computes height/width x 100, rounded, for layout purposes.
func AspectRatio(width, height int) int {
	if width <= 0 {
		return 0
	}
	return int(math.Round(float64(height) / float64(width) * 100))
}
