// Command scanoutdemo composes a synthetic guest scanout with a moving
// cursor and saves the last presented frame as PNG.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/scanout"
	"github.com/gogpu/scanout/backend"
	"github.com/gogpu/scanout/backend/software"
	_ "github.com/gogpu/scanout/backend/wgpu"
	"github.com/gogpu/scanout/display"
)

const (
	guestHandle  scanout.Handle = 1
	cursorHandle scanout.Handle = 2
	cursorSize                  = 32
)

func main() {
	cfg, verbose, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("scanoutdemo: %v", err)
	}

	if verbose {
		scanout.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	img, err := run(cfg)
	if err != nil {
		log.Fatalf("scanoutdemo: %v", err)
	}
	if err := savePNG(cfg.Output, img); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	log.Printf("Frame saved to %s (%dx%d)\n", cfg.Output, img.Bounds().Dx(), img.Bounds().Dy())
}

// run composes cfg.Frames frames and returns the last presented image.
func run(cfg config) (*image.RGBA, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid guest size %dx%d", cfg.Width, cfg.Height)
	}
	fatal := scanout.WithFatalHandler(func(err error) {
		log.Fatalf("scanoutdemo: fatal: %v", err)
	})

	var (
		dev     backend.Device
		session *scanout.Session
		result  func() *image.RGBA
		res     = guestTextures{}
	)
	switch cfg.Mode {
	case "headless":
		d, err := backend.Open(cfg.Backend)
		if err != nil {
			return nil, fmt.Errorf("open backend %q: %w", cfg.Backend, err)
		}
		dev = d
		defer dev.Close()
		h, err := display.NewHeadless(dev, 1, logNotifier{}, scanout.WithResolver(res), fatal)
		if err != nil {
			return nil, err
		}
		defer h.Close()
		out := h.Output(0)
		session = out.Session()
		result = out.Surface
	case "windowed":
		if cfg.Backend != backend.BackendSoftware {
			return nil, fmt.Errorf("windowed mode needs the %s backend", backend.BackendSoftware)
		}
		win := software.NewWindow(cfg.WindowWidth, cfg.WindowHeight)
		dev = software.New(software.WithWindow(win))
		defer dev.Close()
		s, err := display.NewWindowed(win, win).NewSession(dev, scanout.WithResolver(res), fatal)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		session = s
		result = win.Front
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	guest := gradient(cfg.Width, cfg.Height, 0)
	guestTex, err := res.add(dev, guestHandle, guest)
	if err != nil {
		return nil, err
	}
	if cfg.Cursor {
		if _, err := res.add(dev, cursorHandle, arrow(cursorSize)); err != nil {
			return nil, err
		}
	}

	loop := display.NewLoop([]*scanout.Session{session})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- loop.Run(ctx) }()
	defer func() {
		cancel()
		<-stopped
	}()

	err = loop.Do(ctx, func() error {
		if err := session.OnScanoutTexture(guestHandle, 0, 0, cfg.Width, cfg.Height); err != nil {
			return err
		}
		if cfg.Cursor {
			return session.OnCursorTexture(cursorHandle, &scanout.Hotspot{})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range cfg.Frames {
		x := (i * 7) % max(cfg.Width-cursorSize, 1)
		y := (i * 5) % max(cfg.Height-cursorSize, 1)
		err := loop.Do(ctx, func() error {
			if err := guestTex.UpdateRGBA(gradient(cfg.Width, cfg.Height, i)); err != nil {
				return err
			}
			if err := session.OnCursorPosition(x, y); err != nil {
				return err
			}
			return session.Refresh()
		})
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
	}

	var img *image.RGBA
	err = loop.Do(ctx, func() error {
		if src := result(); src != nil {
			img = image.NewRGBA(src.Bounds())
			copy(img.Pix, src.Pix)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("no frame presented")
	}
	return img, nil
}

// guestTextures plays the guest: it owns textures and hands them out by
// handle.
type guestTextures map[scanout.Handle]*backend.Image

func (g guestTextures) add(dev backend.Device, h scanout.Handle, img *image.RGBA) (*backend.Image, error) {
	tex, err := backend.NewImageFromRGBA(dev, img)
	if err != nil {
		return nil, fmt.Errorf("upload handle %d: %w", h, err)
	}
	g[h] = tex
	return tex, nil
}

func (g guestTextures) Resolve(h scanout.Handle) (scanout.Backing, bool) {
	tex, ok := g[h]
	if !ok {
		return scanout.Backing{}, false
	}
	return scanout.Backing{
		Texture:  tex.ID(),
		Target:   backend.Target2D,
		TopFirst: true,
		Width:    tex.Width(),
		Height:   tex.Height(),
	}, true
}

// logNotifier logs headless surface events.
type logNotifier struct{}

func (logNotifier) GfxUpdate(output, x, y, w, h int) {
	scanout.Logger().Debug("gfx update", "output", output, "x", x, "y", y, "w", w, "h", h)
}

func (logNotifier) ReplaceSurface(output int, img *image.RGBA) {
	scanout.Logger().Info("surface replaced", "output", output, "bounds", img.Bounds())
}

// gradient draws a diagonal gradient shifted by frame.
func gradient(w, h, frame int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x*255/max(w-1, 1) + frame),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8(0x60 + frame*3),
				A: 0xff,
			})
		}
	}
	return img
}

// arrow draws a white pointer with a black outline on a transparent
// background.
func arrow(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x <= y/2 && x < size; x++ {
			c := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
			if x == 0 || x == y/2 || y == size-1 {
				c = color.RGBA{A: 0xff}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
