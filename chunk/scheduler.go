// Package chunk schedules mesh generation over a grid of spatial
// chunks, either regenerating a fixed grid every step (realtime mode)
// or streaming a bounded working set around a moving reference point
// (streaming mode), loading at most one and evicting at most one chunk
// per scheduling step.
package chunk

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/soypat/tetramesh"
	"github.com/soypat/tetramesh/internal/d3"
	"github.com/soypat/tetramesh/mesher"
)

// Mode selects the scheduling strategy.
type Mode uint8

const (
	// Realtime regenerates every chunk of the configured grid on each
	// step. All chunks stay resident; nothing is ever evicted.
	Realtime Mode = iota
	// Streaming keeps the working set centered on a reference point,
	// swapping far chunks for near ones one transition per step.
	Streaming
)

// State is the scheduler lifecycle state.
type State uint8

const (
	// Uninitialized is the zero value state of a Scheduler that was
	// not constructed with New.
	Uninitialized State = iota
	// Ready holds between construction, End and the next Start.
	Ready
	// Generating holds between Start and End while Step may be called.
	Generating
	// Closed is terminal; a closed scheduler cannot be restarted.
	Closed
)

// Config is read once at Start and immutable during a generation pass.
type Config struct {
	// CellScale is the world size of one lattice cell.
	CellScale r3.Vec
	// CellCount is the number of cells per chunk on each axis.
	CellCount tetramesh.V3i
	// ChunkCount is the extent of the chunk grid (realtime) or of the
	// streaming window. Its volume bounds the resident chunk count.
	ChunkCount tetramesh.V3i
	// FlipNormals inverts triangle winding and normals globally.
	FlipNormals bool
	// MaxVertices bounds vertices per mesh batch. Zero selects
	// mesher.DefaultMaxVertices.
	MaxVertices int
	Mode        Mode
	// Workers bounds goroutines of the parallel lattice and cell
	// passes. Zero means GOMAXPROCS.
	Workers int
}

// ShapeSource produces the ordered shape list of a generation step.
// The order is authoritative for blending.
type ShapeSource interface {
	Shapes() []tetramesh.Shape
}

// Target exposes the world position the streaming window follows.
// It is queried once per scheduling step.
type Target interface {
	Position() r3.Vec
}

// Sink consumes generated mesh batches. UpdateMesh replaces all batches
// previously supplied for a chunk index; RemoveMesh retires them.
type Sink interface {
	UpdateMesh(index tetramesh.V3i, batches []mesher.MeshBatch) error
	RemoveMesh(index tetramesh.V3i) error
}

// Scheduler lifecycle errors.
var (
	ErrUninitialized = errors.New("chunk: scheduler not constructed with New")
	ErrNotGenerating = errors.New("chunk: scheduler not generating, call Start first")
	ErrGenerating    = errors.New("chunk: generation already started, call End first")
	ErrClosed        = errors.New("chunk: scheduler closed")
	ErrNoTarget      = errors.New("chunk: streaming mode requires a Target")
)

// storage is the reusable buffer set of one chunk generation: one field
// lattice and one triangle buffer, capacity preserving across reuse.
type storage struct {
	lat  mesher.Lattice
	tris mesher.TriangleBuffer
}

type record struct {
	store *storage
	// hasMesh tracks whether the sink currently displays geometry for
	// this chunk so stale meshes can be retired.
	hasMesh bool
}

// Scheduler drives chunk mesh generation. It is not safe for
// concurrent use; all parallelism lives inside a single Step.
type Scheduler struct {
	cfg    Config
	table  *tetramesh.Table
	shapes ShapeSource
	target Target
	sink   Sink
	log    *zap.Logger

	builder mesher.Builder
	mesher  mesher.Mesher
	asm     mesher.Assembler

	state   State
	records map[tetramesh.V3i]*record
	free    []*storage
	order   []tetramesh.V3i
	cursor  int
	lastRef tetramesh.V3i
	haveRef bool
}

// New returns a Ready scheduler. table, shapes and sink must not be
// nil; target may be nil for realtime mode. A nil logger disables
// logging. Non-positive cell or chunk counts are clamped to 1 and
// non-positive cell scales to unit scale.
func New(cfg Config, table *tetramesh.Table, shapes ShapeSource, sink Sink, target Target, log *zap.Logger) *Scheduler {
	if table == nil {
		panic("nil Table argument")
	}
	if shapes == nil {
		panic("nil ShapeSource argument")
	}
	if sink == nil {
		panic("nil Sink argument")
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg.CellCount = cfg.CellCount.MaxElem(tetramesh.V3i{1, 1, 1})
	cfg.ChunkCount = cfg.ChunkCount.MaxElem(tetramesh.V3i{1, 1, 1})
	if cfg.CellScale.X <= 0 || cfg.CellScale.Y <= 0 || cfg.CellScale.Z <= 0 {
		cfg.CellScale = d3.Elem(1)
	}
	return &Scheduler{
		cfg:     cfg,
		table:   table,
		shapes:  shapes,
		target:  target,
		sink:    sink,
		log:     log,
		builder: mesher.Builder{Workers: cfg.Workers},
		mesher:  mesher.Mesher{Workers: cfg.Workers, FlipNormals: cfg.FlipNormals},
		asm:     mesher.Assembler{MaxVertices: cfg.MaxVertices},
		state:   Ready,
	}
}

// State returns the lifecycle state.
func (s *Scheduler) State() State { return s.state }

// Resident returns the number of chunk records currently materialized.
// It never exceeds the ChunkCount volume.
func (s *Scheduler) Resident() int { return len(s.records) }

// Start begins a generation pass: chunk records are cleared and, in
// streaming mode, the distance sorted visitation order is precomputed.
func (s *Scheduler) Start() error {
	switch s.state {
	case Uninitialized:
		return ErrUninitialized
	case Closed:
		return ErrClosed
	case Generating:
		return ErrGenerating
	}
	if s.cfg.Mode == Streaming {
		if s.target == nil {
			return ErrNoTarget
		}
		s.order = visitOrder(s.cfg.ChunkCount)
	}
	s.records = make(map[tetramesh.V3i]*record)
	s.free = nil
	s.cursor = 0
	s.haveRef = false
	s.state = Generating
	s.log.Info("chunk generation started",
		zap.Uint8("mode", uint8(s.cfg.Mode)),
		zap.Ints("chunkCount", s.cfg.ChunkCount[:]),
		zap.Ints("cellCount", s.cfg.CellCount[:]),
	)
	return nil
}

// Step runs one scheduling tick. In realtime mode the whole grid is
// regenerated; in streaming mode at most one chunk is loaded and at
// most one evicted.
func (s *Scheduler) Step() error {
	switch s.state {
	case Uninitialized:
		return ErrUninitialized
	case Closed:
		return ErrClosed
	case Ready:
		return ErrNotGenerating
	}
	compiled, err := s.table.Compile(s.shapes.Shapes())
	if err != nil {
		return fmt.Errorf("compiling shape list: %w", err)
	}
	if s.cfg.Mode == Realtime {
		return s.stepRealtime(compiled)
	}
	return s.stepStreaming(compiled)
}

// End finishes the pass: displayed meshes are retired, all lattice,
// triangle and shape buffers released and chunk records cleared. End on
// a Ready scheduler is a no-op so it can sit on every exit path.
func (s *Scheduler) End() error {
	switch s.state {
	case Uninitialized:
		return ErrUninitialized
	case Closed:
		return ErrClosed
	case Ready:
		return nil
	}
	var err error
	for idx, rec := range s.records {
		if rec.hasMesh {
			if rerr := s.sink.RemoveMesh(idx); rerr != nil && err == nil {
				err = fmt.Errorf("retiring chunk %v: %w", idx, rerr)
			}
		}
	}
	s.records = nil
	s.free = nil
	s.order = nil
	s.state = Ready
	s.log.Info("chunk generation ended")
	return err
}

// Close ends any running pass and permanently closes the scheduler.
func (s *Scheduler) Close() error {
	if s.state == Uninitialized {
		return ErrUninitialized
	}
	if s.state == Closed {
		return nil
	}
	err := s.End()
	s.state = Closed
	return err
}

func (s *Scheduler) stepRealtime(shapes []tetramesh.CompiledShape) error {
	lo := s.gridMin()
	c := s.cfg.ChunkCount
	for x := 0; x < c[0]; x++ {
		for y := 0; y < c[1]; y++ {
			for z := 0; z < c[2]; z++ {
				idx := lo.Add(tetramesh.V3i{x, y, z})
				rec, ok := s.records[idx]
				if !ok {
					rec = &record{store: s.acquire()}
					s.records[idx] = rec
				}
				if err := s.generate(idx, rec, shapes); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Scheduler) stepStreaming(shapes []tetramesh.CompiledShape) error {
	ref := s.chunkOf(s.target.Position())
	if !s.haveRef || ref != s.lastRef {
		// Reference moved to a new chunk: restart the visitation
		// cursor so near offsets are considered first again.
		s.cursor = 0
		s.lastRef = ref
		s.haveRef = true
	}
	for s.cursor < len(s.order) {
		if _, resident := s.records[ref.Add(s.order[s.cursor])]; !resident {
			break
		}
		s.cursor++
	}
	if s.cursor == len(s.order) {
		// Window fully resident, nothing to do this tick.
		return nil
	}
	cand := ref.Add(s.order[s.cursor])

	store, err := s.evict(ref)
	if err != nil {
		return err
	}
	rec := &record{store: store}
	if err := s.generate(cand, rec, shapes); err != nil {
		s.free = append(s.free, store)
		return err
	}
	s.records[cand] = rec
	// Advance past the candidate only once it is resident; a failed
	// evict or generate leaves the cursor in place so the next tick
	// retries the same offset.
	s.cursor++
	return nil
}

// evict retires the resident chunk farthest from ref among those
// outside the active window and returns its storage for recycling.
// When every resident chunk is inside the window nothing is evicted and
// fresh (or previously freed) storage is returned.
func (s *Scheduler) evict(ref tetramesh.V3i) (*storage, error) {
	lo := ref.Sub(s.halfCount())
	hi := lo.Add(s.cfg.ChunkCount).SubScalar(1)
	best := -1
	var victim tetramesh.V3i
	var victimRec *record
	for idx, rec := range s.records {
		if inWindow(idx, lo, hi) {
			continue
		}
		d := idx.Sub(ref).Norm2()
		if d > best {
			best = d
			victim = idx
			victimRec = rec
		}
	}
	if victimRec == nil {
		return s.acquire(), nil
	}
	if victimRec.hasMesh {
		if err := s.sink.RemoveMesh(victim); err != nil {
			return nil, fmt.Errorf("evicting chunk %v: %w", victim, err)
		}
	}
	delete(s.records, victim)
	s.log.Debug("chunk evicted", zap.Ints("index", victim[:]))
	return victimRec.store, nil
}

// generate runs the full pipeline for one chunk into the record's
// recycled storage: lattice build, marching tetrahedra, assembly, then
// hand off to the sink. A chunk yielding no triangles retires any mesh
// previously displayed for the slot.
func (s *Scheduler) generate(idx tetramesh.V3i, rec *record, shapes []tetramesh.CompiledShape) error {
	lat := &rec.store.lat
	lat.Reset(s.chunkOrigin(idx), s.cfg.CellCount, s.cfg.CellScale)
	triangles := 0
	if s.builder.Build(lat, shapes) {
		s.mesher.March(lat, &rec.store.tris)
		triangles = rec.store.tris.Total()
	}
	if triangles == 0 {
		if rec.hasMesh {
			if err := s.sink.RemoveMesh(idx); err != nil {
				return fmt.Errorf("retiring chunk %v: %w", idx, err)
			}
			rec.hasMesh = false
		}
		return nil
	}
	batches := s.asm.Assemble(&rec.store.tris, lat.Bounds())
	if err := s.sink.UpdateMesh(idx, batches); err != nil {
		return fmt.Errorf("updating chunk %v: %w", idx, err)
	}
	rec.hasMesh = true
	s.log.Debug("chunk generated",
		zap.Ints("index", idx[:]),
		zap.Int("triangles", triangles),
		zap.Int("batches", len(batches)),
	)
	return nil
}

func (s *Scheduler) acquire() *storage {
	if n := len(s.free); n > 0 {
		st := s.free[n-1]
		s.free = s.free[:n-1]
		return st
	}
	return &storage{}
}

// halfCount is ChunkCount/2 rounded down, making the active window
// asymmetric for even counts.
func (s *Scheduler) halfCount() tetramesh.V3i {
	c := s.cfg.ChunkCount
	return tetramesh.V3i{c[0] / 2, c[1] / 2, c[2] / 2}
}

// gridMin is the minimum chunk index of the realtime grid, centered on
// the chunk grid origin.
func (s *Scheduler) gridMin() tetramesh.V3i {
	return tetramesh.V3i{}.Sub(s.halfCount())
}

// chunkSize is the world extent of one chunk.
func (s *Scheduler) chunkSize() r3.Vec {
	return d3.MulElem(s.cfg.CellCount.ToV3(), s.cfg.CellScale)
}

// chunkOf returns the chunk coordinate containing a world position.
func (s *Scheduler) chunkOf(p r3.Vec) tetramesh.V3i {
	sz := s.chunkSize()
	return tetramesh.V3i{
		int(math.Floor(p.X / sz.X)),
		int(math.Floor(p.Y / sz.Y)),
		int(math.Floor(p.Z / sz.Z)),
	}
}

// chunkOrigin returns the world position of a chunk's minimum corner.
func (s *Scheduler) chunkOrigin(idx tetramesh.V3i) r3.Vec {
	return d3.MulElem(idx.ToV3(), s.chunkSize())
}

func inWindow(idx, lo, hi tetramesh.V3i) bool {
	for i := range idx {
		if idx[i] < lo[i] || idx[i] > hi[i] {
			return false
		}
	}
	return true
}
