package thumbnail

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFFmpeg(t *testing.T, run runner) *FFmpeg {
	t.Helper()
	f := NewFFmpeg(Config{OutputDir: t.TempDir()}, zap.NewNop())
	f.run = run
	return f
}

func TestFFmpeg_Generate(t *testing.T) {
	t.Run("writes frame to output dir", func(t *testing.T) {
		var gotArgs []string
		f := newTestFFmpeg(t, func(ctx context.Context, name string, args ...string) ([]byte, error) {
			gotArgs = args
			return nil, os.WriteFile(args[len(args)-1], []byte("jpeg"), 0o600)
		})

		out, err := f.Generate(context.Background(), "/tmp/uploads/clip.mp4")
		require.NoError(t, err)
		assert.Equal(t, f.cfg.OutputDir, filepath.Dir(out))
		assert.Contains(t, filepath.Base(out), "clip-")
		assert.Contains(t, gotArgs, "/tmp/uploads/clip.mp4")
		assert.FileExists(t, out)
	})

	t.Run("ffmpeg failure removes partial output", func(t *testing.T) {
		var out string
		f := newTestFFmpeg(t, func(ctx context.Context, name string, args ...string) ([]byte, error) {
			out = args[len(args)-1]
			_ = os.WriteFile(out, []byte("partial"), 0o600)
			return nil, errors.New("exit status 1")
		})

		_, err := f.Generate(context.Background(), "clip.mp4")
		require.Error(t, err)
		assert.NoFileExists(t, out)
	})

	t.Run("clean exit without frame", func(t *testing.T) {
		f := newTestFFmpeg(t, func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, nil
		})

		_, err := f.Generate(context.Background(), "clip.mp4")
		assert.ErrorIs(t, err, ErrNoFrame)
	})
}

func TestFFmpeg_Probe(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    float64
		wantErr bool
	}{
		{name: "seconds with fraction", output: "12.480000\n", want: 12.48},
		{name: "not available", output: "N/A\n", want: 0},
		{name: "garbage", output: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFFmpeg(t, func(ctx context.Context, name string, args ...string) ([]byte, error) {
				assert.Equal(t, "ffprobe", name)
				return []byte(tt.output), nil
			})

			got, err := f.Probe(context.Background(), "clip.mp4")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}
