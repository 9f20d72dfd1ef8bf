// Package ffmpeg implements the transcoding engine. Images are handled
// in-process, video and gif renditions by ffmpeg/ffprobe subprocesses.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bnema/mediaq/internal/domain"
	"github.com/bnema/mediaq/internal/port"
)

// Params holds every tunable of the rendition matrix. Values come from
// configuration; the defaults reproduce the delivery contract.
type Params struct {
	FFmpegBin  string
	FFprobeBin string

	ImageMaxDim  int
	ImageQuality int
	ThumbMaxDim  int
	ThumbQuality int

	VideoMaxHeight int
	VideoCRF       int
	WebmCRF        int
	AudioBitrate   string

	ThumbVideoWidth   int
	ThumbVideoSeconds int
	ThumbVideoCRF     int

	GifFPS   int
	GifWidth int

	// PosterOffset is the fixed timestamp of the representative still frame.
	PosterOffset string
}

func DefaultParams() Params {
	return Params{
		FFmpegBin:         "ffmpeg",
		FFprobeBin:        "ffprobe",
		ImageMaxDim:       2048,
		ImageQuality:      85,
		ThumbMaxDim:       640,
		ThumbQuality:      70,
		VideoMaxHeight:    1080,
		VideoCRF:          23,
		WebmCRF:           33,
		AudioBitrate:      "128k",
		ThumbVideoWidth:   480,
		ThumbVideoSeconds: 6,
		ThumbVideoCRF:     32,
		GifFPS:            12,
		GifWidth:          360,
		PosterOffset:      "00:00:01",
	}
}

type Engine struct {
	p Params
}

func NewEngine(p Params) *Engine {
	return &Engine{p: p}
}

func (e *Engine) Process(ctx context.Context, target domain.TargetFormat, srcPath, scratchDir, outputID string, progress port.ProgressFunc) (*domain.Output, error) {
	if err := validatePath(srcPath); err != nil {
		return nil, fmt.Errorf("invalid input path: %w", err)
	}
	if err := validatePath(scratchDir); err != nil {
		return nil, fmt.Errorf("invalid scratch dir: %w", err)
	}

	switch target {
	case domain.FormatImage:
		return e.processImage(ctx, srcPath, scratchDir, outputID, progress)
	case domain.FormatVideo, domain.FormatGIF:
		return e.processVideo(ctx, target, srcPath, scratchDir, outputID, progress)
	default:
		return nil, fmt.Errorf("unsupported target format: %s", target)
	}
}

// runFFmpeg runs one ffmpeg invocation to completion, keeping the stderr tail
// for diagnostics.
func (e *Engine) runFFmpeg(ctx context.Context, args []string) error {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-y"}, args...)
	cmd := exec.CommandContext(ctx, e.p.FFmpegBin, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, stderrTail(stderr.String()))
	}
	return nil
}

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) > 4 {
		lines = lines[len(lines)-4:]
	}
	return strings.Join(lines, " | ")
}

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}
	return nil
}

var _ port.Engine = (*Engine)(nil)
