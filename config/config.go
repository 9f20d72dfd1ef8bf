package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port            int    `yaml:"port"`
	DataDir         string `yaml:"data_dir"`
	MaxUploadSizeMB int    `yaml:"max_upload_size_mb"`
	LogLevel        string `yaml:"log_level"`
	LogPretty       bool   `yaml:"log_pretty"`

	FFmpegBin  string `yaml:"ffmpeg_bin"`
	FFprobeBin string `yaml:"ffprobe_bin"`

	// Pipeline tunables. Zero or empty means "use the built-in default", so
	// an operator only sets what they want to change.
	ImageMaxDim       int    `yaml:"image_max_dim"`
	ImageQuality      int    `yaml:"image_quality"`
	ThumbMaxDim       int    `yaml:"thumb_max_dim"`
	ThumbQuality      int    `yaml:"thumb_quality"`
	VideoMaxHeight    int    `yaml:"video_max_height"`
	VideoCRF          int    `yaml:"video_crf"`
	WebmCRF           int    `yaml:"webm_crf"`
	AudioBitrate      string `yaml:"audio_bitrate"`
	ThumbVideoWidth   int    `yaml:"thumb_video_width"`
	ThumbVideoSeconds int    `yaml:"thumb_video_seconds"`
	ThumbVideoCRF     int    `yaml:"thumb_video_crf"`
	GifFPS            int    `yaml:"gif_fps"`
	GifWidth          int    `yaml:"gif_width"`
	PosterOffset      string `yaml:"poster_offset"`
}

// Load builds the configuration from environment variables, then overlays the
// YAML file named by CONFIG_FILE when set. YAML keys that are absent keep
// their environment-derived values.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "7900"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	maxUploadSizeMB, err := strconv.Atoi(getEnv("MAX_UPLOAD_SIZE_MB", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE_MB: %w", err)
	}

	cfg := &Config{
		Port:            port,
		DataDir:         getEnv("DATA_DIR", "/data"),
		MaxUploadSizeMB: maxUploadSizeMB,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPretty:       getEnv("LOG_PRETTY", "") == "true",
		FFmpegBin:       getEnv("FFMPEG_BIN", "ffmpeg"),
		FFprobeBin:      getEnv("FFPROBE_BIN", "ffprobe"),
		AudioBitrate:    os.Getenv("AUDIO_BITRATE"),
		PosterOffset:    os.Getenv("POSTER_OFFSET"),
	}

	tunables := map[string]*int{
		"IMAGE_MAX_DIM":       &cfg.ImageMaxDim,
		"IMAGE_QUALITY":       &cfg.ImageQuality,
		"THUMB_MAX_DIM":       &cfg.ThumbMaxDim,
		"THUMB_QUALITY":       &cfg.ThumbQuality,
		"VIDEO_MAX_HEIGHT":    &cfg.VideoMaxHeight,
		"VIDEO_CRF":           &cfg.VideoCRF,
		"WEBM_CRF":            &cfg.WebmCRF,
		"THUMB_VIDEO_WIDTH":   &cfg.ThumbVideoWidth,
		"THUMB_VIDEO_SECONDS": &cfg.ThumbVideoSeconds,
		"THUMB_VIDEO_CRF":     &cfg.ThumbVideoCRF,
		"GIF_FPS":             &cfg.GifFPS,
		"GIF_WIDTH":           &cfg.GifWidth,
	}
	for key, dst := range tunables {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := overlayFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range", cfg.Port)
	}
	if cfg.MaxUploadSizeMB <= 0 {
		return nil, fmt.Errorf("max upload size must be positive, got %d", cfg.MaxUploadSizeMB)
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
