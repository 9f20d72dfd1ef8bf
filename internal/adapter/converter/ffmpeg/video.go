package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/bnema/mediaq/internal/domain"
	"github.com/bnema/mediaq/internal/port"
)

// encodeJob is one output rendition. Multi-pass jobs report progress from
// their final pass only.
type encodeJob struct {
	name      string
	rendition domain.Rendition
	passes    [][]string
}

// processVideo extracts a poster frame for dimension probing, then runs every
// rendition encode in parallel: two height-capped primaries, two muted
// width- and duration-capped thumbnail videos, and for gif targets one
// palette-optimized gif built with a two-pass palette.
func (e *Engine) processVideo(ctx context.Context, target domain.TargetFormat, srcPath, scratchDir, outputID string, progress port.ProgressFunc) (*domain.Output, error) {
	posterPath := filepath.Join(scratchDir, outputID+".poster.jpg")
	if err := e.runFFmpeg(ctx, []string{
		"-i", srcPath,
		"-vframes", "1",
		"-ss", e.p.PosterOffset,
		"-f", "image2",
		posterPath,
	}); err != nil {
		// Inputs shorter than the poster offset have no frame there.
		if err := e.runFFmpeg(ctx, []string{
			"-i", srcPath,
			"-vframes", "1",
			"-f", "image2",
			posterPath,
		}); err != nil {
			return nil, fmt.Errorf("extract poster frame: %w", err)
		}
	}

	width, height, err := e.probeDimensions(ctx, posterPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidMedia, err)
	}

	duration := e.probeDuration(ctx, srcPath)

	jobs := e.videoJobs(target, srcPath, scratchDir, outputID)
	tr := newTracker(len(jobs), progress)

	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			if err := e.runJob(gctx, job, duration, func(pct int) {
				tr.update(i, pct)
			}); err != nil {
				return fmt.Errorf("encode %s: %w", job.name, err)
			}
			tr.update(i, 100)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	tr.finish()

	renditions := make([]domain.Rendition, len(jobs))
	for i, job := range jobs {
		renditions[i] = job.rendition
	}

	return &domain.Output{
		ID:          outputID,
		Width:       width,
		Height:      height,
		AspectRatio: domain.AspectRatio(width, height),
		Renditions:  renditions,
	}, nil
}

func (e *Engine) videoJobs(target domain.TargetFormat, srcPath, scratchDir, outputID string) []encodeJob {
	scaleMain := fmt.Sprintf("scale=-2:min(%d\\,ih)", e.p.VideoMaxHeight)
	scaleThumb := fmt.Sprintf("scale=min(%d\\,iw):-2", e.p.ThumbVideoWidth)
	thumbSecs := strconv.Itoa(e.p.ThumbVideoSeconds)

	// Audio survives only when the target kind is VIDEO. GIF renditions and
	// thumbnail videos are silent.
	audioMP4 := []string{"-an"}
	audioWebm := []string{"-an"}
	if target == domain.FormatVideo {
		audioMP4 = []string{"-c:a", "aac", "-b:a", e.p.AudioBitrate}
		audioWebm = []string{"-c:a", "libopus", "-b:a", e.p.AudioBitrate}
	}

	mp4Path := filepath.Join(scratchDir, outputID+".mp4")
	mp4Args := []string{
		"-i", srcPath,
		"-vf", scaleMain,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(e.p.VideoCRF),
		"-preset", "medium",
		"-movflags", "+faststart",
	}
	mp4Args = append(mp4Args, audioMP4...)
	mp4Args = append(mp4Args, mp4Path)

	webmPath := filepath.Join(scratchDir, outputID+".webm")
	webmArgs := []string{
		"-i", srcPath,
		"-vf", scaleMain,
		"-c:v", "libvpx-vp9",
		"-crf", strconv.Itoa(e.p.WebmCRF),
		"-b:v", "0",
		"-row-mt", "1",
	}
	webmArgs = append(webmArgs, audioWebm...)
	webmArgs = append(webmArgs, webmPath)

	thumbMP4Path := filepath.Join(scratchDir, outputID+".thumb.mp4")
	thumbWebmPath := filepath.Join(scratchDir, outputID+".thumb.webm")

	jobs := []encodeJob{
		{
			name:      "mp4",
			rendition: domain.Rendition{Category: domain.CategoryCompressed, Ext: "mp4", ScratchPath: mp4Path},
			passes:    [][]string{mp4Args},
		},
		{
			name:      "webm",
			rendition: domain.Rendition{Category: domain.CategoryCompressed, Ext: "webm", ScratchPath: webmPath},
			passes:    [][]string{webmArgs},
		},
		{
			name:      "thumb-mp4",
			rendition: domain.Rendition{Category: domain.CategoryThumbnail, Ext: "mp4", ScratchPath: thumbMP4Path},
			passes: [][]string{{
				"-i", srcPath,
				"-t", thumbSecs,
				"-vf", scaleThumb,
				"-c:v", "libx264",
				"-crf", strconv.Itoa(e.p.ThumbVideoCRF),
				"-preset", "veryfast",
				"-movflags", "+faststart",
				"-an",
				thumbMP4Path,
			}},
		},
		{
			name:      "thumb-webm",
			rendition: domain.Rendition{Category: domain.CategoryThumbnail, Ext: "webm", ScratchPath: thumbWebmPath},
			passes: [][]string{{
				"-i", srcPath,
				"-t", thumbSecs,
				"-vf", scaleThumb,
				"-c:v", "libvpx-vp9",
				"-crf", strconv.Itoa(e.p.ThumbVideoCRF),
				"-b:v", "0",
				"-an",
				thumbWebmPath,
			}},
		},
	}

	if target == domain.FormatGIF {
		palettePath := filepath.Join(scratchDir, outputID+".palette.png")
		gifPath := filepath.Join(scratchDir, outputID+".gif")
		gifFilter := fmt.Sprintf("fps=%d,scale=min(%d\\,iw):-1:flags=lanczos", e.p.GifFPS, e.p.GifWidth)
		jobs = append(jobs, encodeJob{
			name:      "gif",
			rendition: domain.Rendition{Category: domain.CategoryCompressed, Ext: "gif", ScratchPath: gifPath},
			passes: [][]string{
				{
					"-i", srcPath,
					"-vf", gifFilter + ",palettegen",
					palettePath,
				},
				{
					"-i", srcPath,
					"-i", palettePath,
					"-filter_complex", gifFilter + "[x];[x][1:v]paletteuse",
					gifPath,
				},
			},
		})
	}

	return jobs
}

func (e *Engine) runJob(ctx context.Context, job encodeJob, duration float64, progress port.ProgressFunc) error {
	for i, pass := range job.passes {
		last := i == len(job.passes)-1
		if !last {
			if err := e.runFFmpeg(ctx, pass); err != nil {
				return err
			}
			continue
		}
		if err := e.runFFmpegProgress(ctx, pass, duration, progress); err != nil {
			return err
		}
	}
	return nil
}

// runFFmpegProgress runs ffmpeg with -progress on stdout and converts
// out_time reports into percentages of the source duration. Values are
// capped at 99 until the process exits.
func (e *Engine) runFFmpegProgress(ctx context.Context, args []string, duration float64, progress port.ProgressFunc) error {
	full := append([]string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-progress", "pipe:1", "-nostats",
	}, args...)
	cmd := exec.CommandContext(ctx, e.p.FFmpegBin, full...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		usec, end, ok := parseProgressLine(scanner.Text())
		if !ok || end || duration <= 0 || progress == nil {
			continue
		}
		pct := int(float64(usec) / (duration * 1e6) * 100)
		if pct > 99 {
			pct = 99
		}
		progress(pct)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, stderrTail(stderr.String()))
	}
	return nil
}
