package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

func (e *Engine) probe(ctx context.Context, inputPath string) (*probeResult, error) {
	cmd := exec.CommandContext(ctx, e.p.FFprobeBin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return &result, nil
}

// probeDimensions returns the first video stream's dimensions.
func (e *Engine) probeDimensions(ctx context.Context, inputPath string) (width, height int, err error) {
	result, err := e.probe(ctx, inputPath)
	if err != nil {
		return 0, 0, err
	}
	for _, stream := range result.Streams {
		if stream.CodecType == "video" && stream.Width > 0 && stream.Height > 0 {
			return stream.Width, stream.Height, nil
		}
	}
	return 0, 0, fmt.Errorf("no video stream found")
}

// probeDuration returns the container duration in seconds, 0 when unknown.
func (e *Engine) probeDuration(ctx context.Context, inputPath string) float64 {
	result, err := e.probe(ctx, inputPath)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(result.Format.Duration, 64)
	if err != nil {
		return 0
	}
	return d
}
