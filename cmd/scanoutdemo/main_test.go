package main

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/gogpu/scanout/backend"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name string
		cfg  config
		want image.Rectangle
	}{
		{
			name: "headless",
			cfg:  config{Backend: backend.BackendSoftware, Mode: "headless", Width: 64, Height: 48, Frames: 3, Cursor: true},
			want: image.Rect(0, 0, 64, 48),
		},
		{
			name: "headless without cursor",
			cfg:  config{Backend: backend.BackendSoftware, Mode: "headless", Width: 40, Height: 40, Frames: 1},
			want: image.Rect(0, 0, 40, 40),
		},
		{
			name: "windowed",
			cfg: config{Backend: backend.BackendSoftware, Mode: "windowed", Width: 64, Height: 48,
				WindowWidth: 96, WindowHeight: 72, Frames: 2, Cursor: true},
			want: image.Rect(0, 0, 96, 72),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := run(tt.cfg)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if img.Bounds() != tt.want {
				t.Errorf("bounds = %v, want %v", img.Bounds(), tt.want)
			}
			if got := img.RGBAAt(img.Bounds().Dx()-1, img.Bounds().Dy()-1); got.A != 0xff {
				t.Errorf("bottom right pixel = %v, want opaque guest content", got)
			}
			if err := savePNG(filepath.Join(t.TempDir(), "out.png"), img); err != nil {
				t.Errorf("savePNG: %v", err)
			}
		})
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config
	}{
		{"unknown mode", config{Backend: backend.BackendSoftware, Mode: "vnc", Width: 8, Height: 8}},
		{"bad size", config{Backend: backend.BackendSoftware, Mode: "headless"}},
		{"windowed wgpu", config{Backend: backend.BackendWGPU, Mode: "windowed", Width: 8, Height: 8}},
		{"unknown backend", config{Backend: "metal2", Mode: "headless", Width: 8, Height: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(tt.cfg); err == nil {
				t.Error("run succeeded")
			}
		})
	}
}
