// Package config handles meshing pipeline configuration loading.
package config

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/soypat/tetramesh"
	"github.com/soypat/tetramesh/chunk"
)

// Config holds all pipeline settings.
type Config struct {
	Grid    GridConfig    `yaml:"grid"`
	Chunks  ChunkConfig   `yaml:"chunks"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
	Shapes  []ShapeSpec   `yaml:"shapes"`
}

// GridConfig holds per-chunk lattice settings.
type GridConfig struct {
	// CellScale is the world size of one lattice cell on each axis.
	CellScale [3]float64 `yaml:"cell_scale"`
	// CellCount is the number of cells per chunk on each axis.
	CellCount [3]int `yaml:"cell_count"`
}

// ChunkConfig holds chunk grid and scheduling settings.
type ChunkConfig struct {
	Count       [3]int `yaml:"count"`
	Mode        string `yaml:"mode"` // "realtime" or "streaming"
	Workers     int    `yaml:"workers"`
	FlipNormals bool   `yaml:"flip_normals"`
	MaxVertices int    `yaml:"max_vertices"`
}

// OutputConfig holds mesh delivery settings.
type OutputConfig struct {
	// Dir receives one STL file per generated chunk. Empty disables
	// file output.
	Dir string `yaml:"dir"`
	// Listen is the websocket broadcast address. Empty disables the
	// mesh server.
	Listen string `yaml:"listen"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Grid: GridConfig{
			CellScale: [3]float64{0.25, 0.25, 0.25},
			CellCount: [3]int{16, 16, 16},
		},
		Chunks: ChunkConfig{
			Count:       [3]int{4, 4, 4},
			Mode:        "realtime",
			Workers:     0,
			FlipNormals: false,
			MaxVertices: 0,
		},
		Output: OutputConfig{
			Dir:    "out",
			Listen: "",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Shapes: []ShapeSpec{
			{Kind: "sphere", Blend: "union", Scale: [3]float64{2, 2, 2}},
		},
	}
}

// SchedulerConfig converts the grid and chunk sections to a scheduler
// configuration. It errors on an unknown mode string.
func (c *Config) SchedulerConfig() (chunk.Config, error) {
	mode, err := parseMode(c.Chunks.Mode)
	if err != nil {
		return chunk.Config{}, err
	}
	return chunk.Config{
		CellScale:   r3.Vec{X: c.Grid.CellScale[0], Y: c.Grid.CellScale[1], Z: c.Grid.CellScale[2]},
		CellCount:   tetramesh.V3i(c.Grid.CellCount),
		ChunkCount:  tetramesh.V3i(c.Chunks.Count),
		FlipNormals: c.Chunks.FlipNormals,
		MaxVertices: c.Chunks.MaxVertices,
		Mode:        mode,
		Workers:     c.Chunks.Workers,
	}, nil
}

func parseMode(s string) (chunk.Mode, error) {
	switch s {
	case "", "realtime":
		return chunk.Realtime, nil
	case "streaming":
		return chunk.Streaming, nil
	}
	return 0, fmt.Errorf("config: unknown scheduling mode %q", s)
}
