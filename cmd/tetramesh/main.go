// Package main is the entry point for the tetramesh chunk mesher.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/soypat/tetramesh"
	"github.com/soypat/tetramesh/chunk"
	"github.com/soypat/tetramesh/config"
	"github.com/soypat/tetramesh/internal/logger"
	"github.com/soypat/tetramesh/mesher"
	"github.com/soypat/tetramesh/meshio"
)

// sceneSource serves a fixed shape list to the scheduler.
type sceneSource struct {
	shapes []tetramesh.Shape
}

func (s *sceneSource) Shapes() []tetramesh.Shape { return s.shapes }

// fixedTarget anchors the streaming window at a world position.
type fixedTarget struct {
	pos r3.Vec
}

func (t *fixedTarget) Position() r3.Vec { return t.pos }

// multiSink fans mesh updates out to several sinks.
type multiSink []chunk.Sink

func (m multiSink) UpdateMesh(index tetramesh.V3i, batches []mesher.MeshBatch) error {
	for _, s := range m {
		if err := s.UpdateMesh(index, batches); err != nil {
			return err
		}
	}
	return nil
}

func (m multiSink) RemoveMesh(index tetramesh.V3i) error {
	for _, s := range m {
		if err := s.RemoveMesh(index); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.LogFile)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("mesher failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	shapes, err := cfg.SceneShapes()
	if err != nil {
		return err
	}
	schedCfg, err := cfg.SchedulerConfig()
	if err != nil {
		return err
	}

	var sinks multiSink
	var dir *meshio.DirSink
	if cfg.Output.Dir != "" {
		if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
			return err
		}
		dir = &meshio.DirSink{Dir: cfg.Output.Dir}
		sinks = append(sinks, dir)
	}
	var ws *meshio.WSSink
	if cfg.Output.Listen != "" {
		ws = meshio.NewWSSink(log)
		sinks = append(sinks, ws)
		mux := http.NewServeMux()
		mux.Handle("/mesh", ws)
		go func() {
			log.Info("mesh server listening", zap.String("addr", cfg.Output.Listen))
			if err := http.ListenAndServe(cfg.Output.Listen, mux); err != nil {
				log.Error("mesh server stopped", zap.Error(err))
			}
		}()
	}
	if len(sinks) == 0 {
		return fmt.Errorf("no output configured, set output.dir or output.listen")
	}

	sched := chunk.New(schedCfg, tetramesh.DefaultTable(),
		&sceneSource{shapes: shapes}, sinks, &fixedTarget{}, log)
	if err := sched.Start(); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	if schedCfg.Mode == chunk.Realtime && ws == nil {
		// One shot: generate the full grid and leave the STL files in
		// place when the scheduler retires its meshes on Close.
		if dir != nil {
			dir.Retain = true
		}
		if err := sched.Step(); err != nil {
			sched.Close()
			return err
		}
		log.Info("grid generated", zap.Int("chunks", sched.Resident()))
		return sched.Close()
	}

	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			log.Info("shutting down")
			if ws != nil {
				ws.Close()
			}
			return sched.Close()
		case <-tick.C:
			if err := sched.Step(); err != nil {
				if ws != nil {
					ws.Close()
				}
				sched.Close()
				return err
			}
		}
	}
}
