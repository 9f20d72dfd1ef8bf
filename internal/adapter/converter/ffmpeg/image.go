package ffmpeg

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/bnema/mediaq/internal/domain"
	"github.com/bnema/mediaq/internal/port"
)

// processImage emits two compressed encodings (jpeg + webp) at the full
// capped resolution and two thumbnail encodings at the thumbnail cap. The
// source is auto-oriented and flattened onto white before any resize.
func (e *Engine) processImage(ctx context.Context, srcPath, scratchDir, outputID string, progress port.ProgressFunc) (*domain.Output, error) {
	src, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrInvalidMedia, err)
	}

	flat := flatten(src)
	full := fitDown(flat, e.p.ImageMaxDim)
	bounds := full.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: zero dimensions", domain.ErrInvalidMedia)
	}

	report := func(pct int) {
		if progress != nil {
			progress(pct)
		}
	}

	fullJPG := filepath.Join(scratchDir, outputID+".jpg")
	if err := imaging.Save(full, fullJPG, imaging.JPEGQuality(e.p.ImageQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	report(25)

	// WebP has no in-process encoder; ffmpeg encodes it from a lossless
	// intermediate of the already-resized frame.
	fullPNG := filepath.Join(scratchDir, outputID+".full.png")
	if err := imaging.Save(full, fullPNG); err != nil {
		return nil, fmt.Errorf("write intermediate: %w", err)
	}
	fullWebP := filepath.Join(scratchDir, outputID+".webp")
	if err := e.encodeWebP(ctx, fullPNG, fullWebP, e.p.ImageQuality); err != nil {
		return nil, err
	}
	report(50)

	thumb := fitDown(flat, e.p.ThumbMaxDim)
	thumbJPG := filepath.Join(scratchDir, outputID+".thumb.jpg")
	if err := imaging.Save(thumb, thumbJPG, imaging.JPEGQuality(e.p.ThumbQuality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail jpeg: %w", err)
	}
	report(75)

	thumbPNG := filepath.Join(scratchDir, outputID+".thumb.png")
	if err := imaging.Save(thumb, thumbPNG); err != nil {
		return nil, fmt.Errorf("write thumbnail intermediate: %w", err)
	}
	thumbWebP := filepath.Join(scratchDir, outputID+".thumb.webp")
	if err := e.encodeWebP(ctx, thumbPNG, thumbWebP, e.p.ThumbQuality); err != nil {
		return nil, err
	}
	report(100)

	return &domain.Output{
		ID:          outputID,
		Width:       width,
		Height:      height,
		AspectRatio: domain.AspectRatio(width, height),
		Renditions: []domain.Rendition{
			{Category: domain.CategoryCompressed, Ext: "jpg", ScratchPath: fullJPG},
			{Category: domain.CategoryCompressed, Ext: "webp", ScratchPath: fullWebP},
			{Category: domain.CategoryThumbnail, Ext: "jpg", ScratchPath: thumbJPG},
			{Category: domain.CategoryThumbnail, Ext: "webp", ScratchPath: thumbWebP},
		},
	}, nil
}

func (e *Engine) encodeWebP(ctx context.Context, inputPath, outputPath string, quality int) error {
	return e.runFFmpeg(ctx, []string{
		"-i", inputPath,
		"-c:v", "libwebp",
		"-quality", fmt.Sprintf("%d", quality),
		outputPath,
	})
}

// flatten strips the alpha channel by compositing onto a white background.
func flatten(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	bg := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// fitDown caps the longest side at maxDim without ever upscaling.
func fitDown(img *image.NRGBA, maxDim int) *image.NRGBA {
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}
