// Command phoxel rasterizes a photonic-crystal waveguide description into
// a 3D permittivity grid.
//
// Scenes are described either as JSON documents or as Lisp scripts; the
// format is chosen by file extension (.json vs .lisp). The resulting grid
// is written as CBOR, optionally alongside per-slice PNG previews.
//
// Usage:
//
//	phoxel [flags]
//
// Flags:
//
//	-scene string      Scene file (.json or .lisp)
//	-config string     YAML run configuration file
//	-o string          Output grid file (default "grid.cbor")
//	-nx, -ny, -nz int  Grid resolution (default 64x64x8)
//	-periods-x int     In-plane periods along a1 (default 1)
//	-periods-y int     In-plane periods along a2 (default 1)
//	-workers int       Worker goroutines (default GOMAXPROCS)
//	-png-dir string    Write per-slice PNG previews into this directory
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-serve             Run the HTTP service instead of a one-shot run
//	-addr string       HTTP listen address (default ":8080")
//
// Examples:
//
//	# Rasterize a JSON scene at the default resolution
//	phoxel -scene slab.json -o slab.cbor
//
//	# Rasterize a Lisp scene with previews
//	phoxel -scene slab.lisp -nx 128 -ny 128 -nz 16 -png-dir out/
//
//	# Run everything from a YAML config
//	phoxel -config run.yaml
//
//	# Start the HTTP service
//	phoxel -serve -addr :8080
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/phoxel/phoxel/pkg/engine"
	"github.com/phoxel/phoxel/pkg/export"
	"github.com/phoxel/phoxel/pkg/raster"
	"github.com/phoxel/phoxel/pkg/scene"
	"github.com/phoxel/phoxel/pkg/waveguide"
	"github.com/phoxel/phoxel/pkg/web"
)

// Config holds a full run configuration. Flags override file values.
type Config struct {
	Scene  string `yaml:"scene"`
	Output string `yaml:"output"`

	Resolution struct {
		Nx int `yaml:"nx"`
		Ny int `yaml:"ny"`
		Nz int `yaml:"nz"`
	} `yaml:"resolution"`

	PeriodsX int `yaml:"periodsX"`
	PeriodsY int `yaml:"periodsY"`
	Workers  int `yaml:"workers"`

	PNGDir   string `yaml:"pngDir"`
	LogLevel string `yaml:"logLevel"`
}

func defaultConfig() Config {
	c := Config{
		Output:   "grid.cbor",
		PeriodsX: 1,
		PeriodsY: 1,
		Workers:  runtime.GOMAXPROCS(0),
		LogLevel: "info",
	}
	c.Resolution.Nx = 64
	c.Resolution.Ny = 64
	c.Resolution.Nz = 8
	return c
}

func loadConfigFile(path string, c *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func main() {
	var (
		configPath string
		serve      bool
		addr       string
	)
	c := defaultConfig()

	flag.StringVar(&c.Scene, "scene", "", "Scene file (.json or .lisp)")
	flag.StringVar(&configPath, "config", "", "YAML run configuration file")
	flag.StringVar(&c.Output, "o", c.Output, "Output grid file")
	flag.IntVar(&c.Resolution.Nx, "nx", c.Resolution.Nx, "Grid cells along x")
	flag.IntVar(&c.Resolution.Ny, "ny", c.Resolution.Ny, "Grid cells along y")
	flag.IntVar(&c.Resolution.Nz, "nz", c.Resolution.Nz, "Grid cells along z")
	flag.IntVar(&c.PeriodsX, "periods-x", c.PeriodsX, "In-plane periods along a1")
	flag.IntVar(&c.PeriodsY, "periods-y", c.PeriodsY, "In-plane periods along a2")
	flag.IntVar(&c.Workers, "workers", c.Workers, "Worker goroutines")
	flag.StringVar(&c.PNGDir, "png-dir", c.PNGDir, "Write per-slice PNG previews into this directory")
	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP service")
	flag.StringVar(&addr, "addr", ":8080", "HTTP listen address")
	flag.Parse()

	if configPath != "" {
		if err := loadConfigFile(configPath, &c); err != nil {
			log.Fatal(err)
		}
		// Re-apply flags so the command line wins over the file.
		flag.Parse()
	}

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Fatalf("invalid log level %q", c.LogLevel)
	}
	log.SetLevel(level)

	if serve {
		runServer(addr)
		return
	}

	if c.Scene == "" {
		fmt.Fprintln(os.Stderr, "phoxel: -scene or -config required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(c); err != nil {
		log.Fatal(err)
	}
}

func runServer(addr string) {
	log.WithField("addr", addr).Info("listening")
	srv := web.NewServer(log.StandardLogger())
	if err := http.ListenAndServe(addr, srv); err != nil {
		log.Fatal(err)
	}
}

func run(c Config) error {
	wg, err := loadScene(c.Scene)
	if err != nil {
		return err
	}

	g, err := raster.Rasterize(wg,
		c.Resolution.Nx, c.Resolution.Ny, c.Resolution.Nz,
		raster.WithPeriods(c.PeriodsX, c.PeriodsY),
		raster.WithWorkers(c.Workers),
	)
	if err != nil {
		return err
	}

	if err := export.WriteGridFile(c.Output, g); err != nil {
		return fmt.Errorf("write grid: %w", err)
	}
	log.WithFields(log.Fields{
		"output": c.Output,
		"voxels": g.Voxels(),
	}).Info("grid written")

	if c.PNGDir != "" {
		if err := os.MkdirAll(c.PNGDir, 0o755); err != nil {
			return fmt.Errorf("create preview dir: %w", err)
		}
		prefix := strings.TrimSuffix(filepath.Base(c.Scene), filepath.Ext(c.Scene))
		if err := export.WriteSlicePNGs(c.PNGDir, prefix, g); err != nil {
			return fmt.Errorf("write previews: %w", err)
		}
		log.WithField("dir", c.PNGDir).Info("previews written")
	}

	return nil
}

// loadScene reads a scene file and builds the waveguide it describes. JSON
// documents and Lisp scripts are distinguished by extension.
func loadScene(path string) (waveguide.Waveguide, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return waveguide.Waveguide{}, fmt.Errorf("read scene: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		doc, err := scene.Parse(data)
		if err != nil {
			return waveguide.Waveguide{}, fmt.Errorf("parse scene: %w", err)
		}
		return doc.Build()

	case ".lisp", ".zy":
		eng := engine.NewEngine()
		wg, evalErrs, err := eng.Evaluate(string(data))
		if err != nil {
			return waveguide.Waveguide{}, fmt.Errorf("evaluate scene: %w", err)
		}
		if len(evalErrs) > 0 {
			for _, e := range evalErrs {
				log.Error(e.Error())
			}
			return waveguide.Waveguide{}, fmt.Errorf("scene script has %d error(s)", len(evalErrs))
		}
		return *wg, nil

	default:
		return waveguide.Waveguide{}, fmt.Errorf("unsupported scene format %q", ext)
	}
}
