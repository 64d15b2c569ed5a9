package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/scanout/backend"
)

// config describes one demo run. It can be loaded from a YAML file and
// overridden by flags.
type config struct {
	Backend      string `yaml:"backend"`
	Mode         string `yaml:"mode"`
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
	WindowWidth  int    `yaml:"window_width"`
	WindowHeight int    `yaml:"window_height"`
	Frames       int    `yaml:"frames"`
	Cursor       bool   `yaml:"cursor"`
	Output       string `yaml:"output"`
}

func defaultConfig() config {
	return config{
		Backend:      backend.BackendSoftware,
		Mode:         "headless",
		Width:        640,
		Height:       480,
		WindowWidth:  960,
		WindowHeight: 720,
		Frames:       30,
		Cursor:       true,
		Output:       "scanout.png",
	}
}

// bind registers a flag for every field of c.
func (c *config) bind(fs *flag.FlagSet) {
	fs.StringVar(&c.Backend, "backend", c.Backend, "device backend (wgpu, software, or empty for best)")
	fs.StringVar(&c.Mode, "mode", c.Mode, "display mode: headless or windowed")
	fs.IntVar(&c.Width, "width", c.Width, "guest scanout width")
	fs.IntVar(&c.Height, "height", c.Height, "guest scanout height")
	fs.IntVar(&c.WindowWidth, "window-width", c.WindowWidth, "window width (windowed mode)")
	fs.IntVar(&c.WindowHeight, "window-height", c.WindowHeight, "window height (windowed mode)")
	fs.IntVar(&c.Frames, "frames", c.Frames, "frames to compose")
	fs.BoolVar(&c.Cursor, "cursor", c.Cursor, "draw a cursor overlay")
	fs.StringVar(&c.Output, "output", c.Output, "output file")
}

// loadConfig reads a YAML config over the defaults. Unknown keys are
// rejected.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// parseConfig parses args. Values come from the defaults, then the file
// named by -config, then flags given explicitly.
func parseConfig(fs *flag.FlagSet, args []string) (cfg config, verbose bool, err error) {
	cfg = defaultConfig()
	cfg.bind(fs)
	path := fs.String("config", "", "YAML config file")
	fs.BoolVar(&verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return cfg, false, err
	}
	if *path == "" {
		return cfg, verbose, nil
	}
	file, err := loadConfig(*path)
	if err != nil {
		return cfg, false, err
	}
	// Explicit flags win over the file.
	explicit := file
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" || f.Name == "v" {
			return
		}
		_ = explicitSet(&explicit, f.Name, f.Value.String())
	})
	return explicit, verbose, nil
}

// explicitSet sets one field of c by flag name.
func explicitSet(c *config, name, value string) error {
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	c.bind(fs)
	return fs.Set(name, value)
}
