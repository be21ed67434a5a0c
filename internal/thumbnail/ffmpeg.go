// Package thumbnail produces preview images and probes media duration by
// shelling out to ffmpeg and ffprobe.
package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoFrame is returned when ffmpeg exits cleanly without writing an image.
var ErrNoFrame = errors.New("no frame extracted")

// Config controls the external binaries and where images are written.
type Config struct {
	FFmpegPath  string
	FFprobePath string
	OutputDir   string
	SeekOffset  time.Duration
	Timeout     time.Duration
}

// runner executes a command and returns its stdout.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// FFmpeg grabs a single frame from a video as its thumbnail.
type FFmpeg struct {
	cfg    Config
	run    runner
	logger *zap.Logger
}

// NewFFmpeg creates an FFmpeg generator. Empty binary paths resolve through $PATH.
func NewFFmpeg(cfg Config, logger *zap.Logger) *FFmpeg {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = os.TempDir()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	return &FFmpeg{cfg: cfg, run: execRunner, logger: logger.Named("thumbnail")}
}

// Generate writes a JPEG frame of sourcePath into the output directory and
// returns its path. The caller owns the file.
func (f *FFmpeg) Generate(ctx context.Context, sourcePath string) (string, error) {
	if err := os.MkdirAll(f.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create thumbnail dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	out := filepath.Join(f.cfg.OutputDir, fmt.Sprintf("%s-%s.jpg", base, uuid.NewString()))

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	args := []string{
		"-y",
		"-ss", strconv.FormatFloat(f.cfg.SeekOffset.Seconds(), 'f', 3, 64),
		"-i", sourcePath,
		"-frames:v", "1",
		"-q:v", "2",
		out,
	}
	if _, err := f.run(ctx, f.cfg.FFmpegPath, args...); err != nil {
		_ = os.Remove(out)
		return "", fmt.Errorf("extract frame: %w", err)
	}

	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		_ = os.Remove(out)
		return "", ErrNoFrame
	}

	f.logger.Debug("thumbnail generated", zap.String("source", sourcePath), zap.String("output", out))
	return out, nil
}

// Probe returns the media duration of path in seconds.
func (f *FFmpeg) Probe(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	out, err := f.run(ctx, f.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}

	raw := strings.TrimSpace(string(out))
	if raw == "" || raw == "N/A" {
		return 0, nil
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	return seconds, nil
}
