package chunk

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/soypat/tetramesh"
	"github.com/soypat/tetramesh/internal/d3"
	"github.com/soypat/tetramesh/mesher"
)

// recordSink tracks which chunk indices currently display a mesh.
type recordSink struct {
	meshes  map[tetramesh.V3i][]mesher.MeshBatch
	updates int
	removes int
}

func newRecordSink() *recordSink {
	return &recordSink{meshes: make(map[tetramesh.V3i][]mesher.MeshBatch)}
}

func (s *recordSink) UpdateMesh(index tetramesh.V3i, batches []mesher.MeshBatch) error {
	s.meshes[index] = batches
	s.updates++
	return nil
}

func (s *recordSink) RemoveMesh(index tetramesh.V3i) error {
	delete(s.meshes, index)
	s.removes++
	return nil
}

type staticShapes struct {
	shapes []tetramesh.Shape
}

func (s *staticShapes) Shapes() []tetramesh.Shape { return s.shapes }

type movingTarget struct {
	pos r3.Vec
}

func (t *movingTarget) Position() r3.Vec { return t.pos }

// sphereScene is a unit-radius sphere at the origin.
func sphereScene() *staticShapes {
	return &staticShapes{shapes: []tetramesh.Shape{{
		Kind:   tetramesh.KindSphere,
		Pose:   tetramesh.ComposeTransform(r3.Vec{}, d3.Elem(2), r3.Rotation{Real: 1}),
		Active: true,
	}}}
}

func testConfig(mode Mode) Config {
	return Config{
		CellScale:  d3.Elem(0.25),
		CellCount:  tetramesh.V3i{4, 4, 4}, // chunk size 1x1x1
		ChunkCount: tetramesh.V3i{3, 3, 3},
		Mode:       mode,
	}
}

func TestSchedulerLifecycle(t *testing.T) {
	sink := newRecordSink()
	s := New(testConfig(Realtime), tetramesh.DefaultTable(), sphereScene(), sink, nil, nil)
	if s.State() != Ready {
		t.Fatalf("state after New = %d, want Ready", s.State())
	}
	if err := s.Step(); !errors.Is(err, ErrNotGenerating) {
		t.Errorf("Step before Start = %v, want ErrNotGenerating", err)
	}
	if err := s.End(); err != nil {
		t.Errorf("End while Ready should be a no-op, got %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); !errors.Is(err, ErrGenerating) {
		t.Errorf("second Start = %v, want ErrGenerating", err)
	}
	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if err := s.End(); err != nil {
		t.Fatal(err)
	}
	if s.Resident() != 0 {
		t.Errorf("resident after End = %d, want 0", s.Resident())
	}
	if len(sink.meshes) != 0 {
		t.Errorf("%d meshes survive End", len(sink.meshes))
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Step(); !errors.Is(err, ErrClosed) {
		t.Errorf("Step after Close = %v, want ErrClosed", err)
	}
	if err := s.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close = %v, want ErrClosed", err)
	}
	var zero Scheduler
	if err := zero.Start(); !errors.Is(err, ErrUninitialized) {
		t.Errorf("zero value Start = %v, want ErrUninitialized", err)
	}
}

func TestStreamingRequiresTarget(t *testing.T) {
	s := New(testConfig(Streaming), tetramesh.DefaultTable(), sphereScene(), newRecordSink(), nil, nil)
	if err := s.Start(); !errors.Is(err, ErrNoTarget) {
		t.Errorf("streaming Start without target = %v, want ErrNoTarget", err)
	}
}

func TestRealtimeStep(t *testing.T) {
	sink := newRecordSink()
	cfg := testConfig(Realtime)
	cfg.ChunkCount = tetramesh.V3i{2, 2, 2}
	s := New(cfg, tetramesh.DefaultTable(), sphereScene(), sink, nil, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if got := s.Resident(); got != 8 {
		t.Errorf("resident after realtime step = %d, want full grid 8", got)
	}
	// The unit sphere surface crosses every octant chunk of the
	// [-1,1]^3 grid.
	if len(sink.meshes) != 8 {
		t.Errorf("meshes displayed = %d, want 8", len(sink.meshes))
	}
	// A second step regenerates in place without growing anything.
	updates := sink.updates
	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if got := s.Resident(); got != 8 {
		t.Errorf("resident after second step = %d, want 8", got)
	}
	if sink.updates != updates+8 {
		t.Errorf("second step issued %d updates, want 8", sink.updates-updates)
	}
}

func TestStreamingLoadBudget(t *testing.T) {
	sink := newRecordSink()
	target := &movingTarget{}
	s := New(testConfig(Streaming), tetramesh.DefaultTable(), sphereScene(), sink, target, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	capacity := 27
	for i := 1; i <= capacity; i++ {
		if err := s.Step(); err != nil {
			t.Fatal(err)
		}
		if got := s.Resident(); got > i {
			t.Fatalf("step %d loaded more than one chunk: resident %d", i, got)
		}
	}
	if got := s.Resident(); got != capacity {
		t.Errorf("resident after %d steps = %d, want %d", capacity, got, capacity)
	}
	// Window fully resident: further steps are no-ops.
	updates := sink.updates
	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if s.Resident() != capacity || sink.updates != updates {
		t.Error("step on a fully resident window should do nothing")
	}
}

func TestStreamingNearestFirst(t *testing.T) {
	sink := newRecordSink()
	target := &movingTarget{}
	s := New(testConfig(Streaming), tetramesh.DefaultTable(), sphereScene(), sink, target, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	// The first loaded chunk is the one containing the target.
	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.records[tetramesh.V3i{0, 0, 0}]; !ok {
		t.Error("first streamed chunk is not the target's chunk")
	}
}

func TestStreamingFollowsTarget(t *testing.T) {
	sink := newRecordSink()
	target := &movingTarget{}
	s := New(testConfig(Streaming), tetramesh.DefaultTable(), sphereScene(), sink, target, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 27; i++ {
		if err := s.Step(); err != nil {
			t.Fatal(err)
		}
	}
	// Move one chunk along +X. Enough steps swap the trailing plane of
	// 9 chunks for the leading one, one transition per step.
	target.pos = r3.Vec{X: 1.5}
	for i := 0; i < 27; i++ {
		if err := s.Step(); err != nil {
			t.Fatal(err)
		}
		if got := s.Resident(); got > 27 {
			t.Fatalf("resident %d exceeds window capacity", got)
		}
	}
	if got := s.Resident(); got != 27 {
		t.Fatalf("resident after move = %d, want 27", got)
	}
	ref := tetramesh.V3i{1, 0, 0}
	lo := ref.SubScalar(1)
	hi := ref.AddScalar(1)
	for idx := range s.records {
		if !inWindow(idx, lo, hi) {
			t.Errorf("chunk %v resident outside the moved window", idx)
		}
	}
}

// failOnceSink fails the first UpdateMesh and succeeds afterwards.
type failOnceSink struct {
	recordSink
	failed bool
}

func (s *failOnceSink) UpdateMesh(index tetramesh.V3i, batches []mesher.MeshBatch) error {
	if !s.failed {
		s.failed = true
		return errors.New("sink unavailable")
	}
	return s.recordSink.UpdateMesh(index, batches)
}

// A transient sink failure must not skip the failed chunk: the cursor
// holds its position so the next tick retries the same offset and a
// stationary reference still converges on the full window.
func TestStreamingRetriesAfterSinkError(t *testing.T) {
	sink := &failOnceSink{recordSink: *newRecordSink()}
	target := &movingTarget{}
	s := New(testConfig(Streaming), tetramesh.DefaultTable(), sphereScene(), sink, target, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Step(); err == nil {
		t.Fatal("step with a failing sink returned no error")
	}
	if s.Resident() != 0 {
		t.Fatalf("failed chunk left resident: %d", s.Resident())
	}
	for i := 0; i < 27; i++ {
		if err := s.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.Resident(); got != 27 {
		t.Errorf("resident after recovery = %d, want 27", got)
	}
	if _, ok := sink.meshes[tetramesh.V3i{0, 0, 0}]; !ok {
		t.Error("reference chunk never regenerated after the failed update")
	}
}

func TestVisitOrder(t *testing.T) {
	count := tetramesh.V3i{3, 3, 3}
	order := visitOrder(count)
	if len(order) != 27 {
		t.Fatalf("order length = %d, want 27", len(order))
	}
	if order[0] != (tetramesh.V3i{0, 0, 0}) {
		t.Errorf("nearest offset = %v, want the center", order[0])
	}
	// Distances never decrease by more than the tie-break jitter.
	seen := make(map[tetramesh.V3i]bool)
	for i, off := range order {
		if seen[off] {
			t.Fatalf("offset %v visited twice", off)
		}
		seen[off] = true
		if i > 0 && off.Norm2() < order[i-1].Norm2()-1 {
			t.Errorf("offset %v at %d breaks distance ordering", off, i)
		}
	}
	// Reproducible across calls.
	again := visitOrder(count)
	for i := range order {
		if order[i] != again[i] {
			t.Fatal("visit order not deterministic")
		}
	}
}

func TestChunkOf(t *testing.T) {
	s := New(testConfig(Streaming), tetramesh.DefaultTable(), sphereScene(), newRecordSink(), &movingTarget{}, nil)
	for _, tc := range []struct {
		p    r3.Vec
		want tetramesh.V3i
	}{
		{p: r3.Vec{}, want: tetramesh.V3i{0, 0, 0}},
		{p: r3.Vec{X: 0.99, Y: 0.99, Z: 0.99}, want: tetramesh.V3i{0, 0, 0}},
		{p: r3.Vec{X: 1}, want: tetramesh.V3i{1, 0, 0}},
		{p: r3.Vec{X: -0.01}, want: tetramesh.V3i{-1, 0, 0}},
	} {
		if got := s.chunkOf(tc.p); got != tc.want {
			t.Errorf("chunkOf(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

// Empty chunks never hold meshes: a distant scene generates records but
// no sink updates.
func TestEmptyChunksDisplayNothing(t *testing.T) {
	sink := newRecordSink()
	scene := &staticShapes{shapes: []tetramesh.Shape{{
		Kind:   tetramesh.KindSphere,
		Pose:   tetramesh.ComposeTransform(r3.Vec{X: 100}, d3.Elem(1), r3.Rotation{Real: 1}),
		Active: true,
	}}}
	cfg := testConfig(Realtime)
	s := New(cfg, tetramesh.DefaultTable(), scene, sink, nil, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if len(sink.meshes) != 0 {
		t.Errorf("distant scene displayed %d meshes", len(sink.meshes))
	}
	if s.Resident() != 27 {
		t.Errorf("resident = %d, want full grid 27", s.Resident())
	}
}

// An inactive-only scene compiles to an empty shape list; Step still
// succeeds and displays nothing.
func TestInactiveScene(t *testing.T) {
	sink := newRecordSink()
	scene := sphereScene()
	scene.shapes[0].Active = false
	s := New(testConfig(Realtime), tetramesh.DefaultTable(), scene, sink, nil, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Step(); err != nil {
		t.Fatal(err)
	}
	if len(sink.meshes) != 0 {
		t.Errorf("inactive scene displayed %d meshes", len(sink.meshes))
	}
}

func TestNewClampsConfig(t *testing.T) {
	cfg := Config{}
	s := New(cfg, tetramesh.DefaultTable(), sphereScene(), newRecordSink(), nil, nil)
	if s.cfg.CellCount != (tetramesh.V3i{1, 1, 1}) {
		t.Errorf("cell count not clamped: %v", s.cfg.CellCount)
	}
	if s.cfg.ChunkCount != (tetramesh.V3i{1, 1, 1}) {
		t.Errorf("chunk count not clamped: %v", s.cfg.ChunkCount)
	}
	if s.cfg.CellScale != d3.Elem(1) {
		t.Errorf("cell scale not clamped: %v", s.cfg.CellScale)
	}
}
