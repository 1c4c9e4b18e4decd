package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to scene config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagMode    = flag.String("mode", "", "Scheduling mode: realtime or streaming")
	flagWorkers = flag.Int("workers", 0, "Worker goroutines per pass (0 = all CPUs)")
	flagOut     = flag.String("out", "", "Directory for chunk STL output")
	flagListen  = flag.String("listen", "", "Websocket mesh server address")
	flagFlip    = flag.Bool("flip", false, "Flip triangle winding and normals")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via -config.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagMode != "" {
		cfg.Chunks.Mode = *flagMode
	}
	if *flagWorkers > 0 {
		cfg.Chunks.Workers = *flagWorkers
	}
	if *flagOut != "" {
		cfg.Output.Dir = *flagOut
	}
	if *flagListen != "" {
		cfg.Output.Listen = *flagListen
	}
	if *flagFlip {
		cfg.Chunks.FlipNormals = true
	}
}
