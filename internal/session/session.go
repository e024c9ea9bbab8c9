// Package session связывает поле, классификатор и симулятор осыпания в
// покадровый цикл: копание, подшаги релаксации и перестроение сетки.
//
// Session не потокобезопасна; её вызывает один управляющий цикл.
package session

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/annel0/soilsim/internal/config"
	"github.com/annel0/soilsim/internal/erosion"
	"github.com/annel0/soilsim/internal/logging"
	"github.com/annel0/soilsim/internal/material"
	"github.com/annel0/soilsim/internal/metrics"
	"github.com/annel0/soilsim/internal/observability"
	"github.com/annel0/soilsim/internal/vec"
	"github.com/annel0/soilsim/internal/voxel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/spatial/r3"
)

// MeshSink получает каждую перестроенную сетку
type MeshSink func(mesh voxel.Mesh)

// Stats содержит сводку для отладочного вывода и сервера состояния
type Stats struct {
	Vertices      int    `json:"vertices"`
	Triangles     int    `json:"triangles"`
	SimActive     bool   `json:"sim_active"`
	Frames        uint64 `json:"frames"`
	ChangedFrames uint64 `json:"changed_frames"`
	Remeshes      uint64 `json:"remeshes"`
	Digs          uint64 `json:"digs"`
	Passes        uint64 `json:"passes"`
	Transfers     uint64 `json:"transfers"`
}

// Option настраивает сессию
type Option func(*Session)

// WithMetrics подключает Prometheus-метрики
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Session) {
		s.metrics = r
	}
}

// WithMeshSink подключает получателя сеток
func WithMeshSink(sink MeshSink) Option {
	return func(s *Session) {
		s.sink = sink
	}
}

// WithMaterials заменяет классификатор грунта
func WithMaterials(src erosion.MaterialSource) Option {
	return func(s *Session) {
		s.materials = src
	}
}

// WithLogger задаёт логгер компонента
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// Session владеет полем, симулятором и последней сеткой
type Session struct {
	cfg        *config.Config
	field      *voxel.Field
	classifier material.Classifier
	materials  erosion.MaterialSource
	sim        *erosion.Simulator
	mesh       voxel.Mesh

	frames        uint64
	changedFrames uint64
	remeshes      uint64
	digs          uint64
	pending       bool // есть изменения, не попавшие в сетку

	sink    MeshSink
	metrics *metrics.Recorder
	tracer  trace.Tracer
	logger  *logging.Logger
}

// New создаёт поле по конфигурации, генерирует рельеф и строит первую сетку.
// При cfg == nil используется config.Default().
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factory, err := cfg.NoiseFactory()
	if err != nil {
		return nil, err
	}
	field, err := voxel.NewField(cfg.ToGrid(), voxel.WithNoise(factory))
	if err != nil {
		return nil, fmt.Errorf("create field: %w", err)
	}

	s := &Session{
		cfg:        cfg,
		field:      field,
		classifier: material.NewClassifier(cfg.World.Seed),
		tracer:     observability.Tracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.materials == nil {
		s.materials = s.classifier
	}
	if s.logger == nil {
		s.logger = logging.GetSessionLogger()
	}

	start := time.Now()
	field.InitTerrain(cfg.World.Seed)
	s.sim = erosion.NewSimulator(field, s.materials, cfg.ErosionParams())
	s.remesh(context.Background())

	g := field.Grid()
	s.logger.Info("🌱 Поле %dx%dx%d (шаг %.3f м, сид %d, шум %s) создано за %v",
		g.NX, g.NY, g.NZ, g.VoxelSize, cfg.World.Seed, cfg.World.Noise, time.Since(start))
	return s, nil
}

// Field возвращает поле сессии. Изменять его в обход сессии нельзя.
func (s *Session) Field() *voxel.Field {
	return s.field
}

// Mesh возвращает последнюю построенную сетку
func (s *Session) Mesh() voxel.Mesh {
	return s.mesh
}

// MaterialAt возвращает описание грунта в мировой точке
func (s *Session) MaterialAt(p r3.Vec) material.Sample {
	return s.classifier.Sample(p)
}

// Active сообщает, идёт ли осыпание
func (s *Session) Active() bool {
	return s.sim.Active()
}

// Dig вырезает сферу в точке поверхности point с внешней нормалью normal.
// Центр смещается внутрь грунта на долю радиуса, после чего сетка
// перестраивается сразу, а осыпание активируется.
func (s *Session) Dig(ctx context.Context, point, normal r3.Vec) voxel.StampResult {
	radius := s.cfg.Dig.Radius
	center := point
	if n := r3.Norm(normal); n > 0 && !math.IsNaN(n) {
		center = r3.Sub(point, r3.Scale(radius*s.cfg.Dig.NormalBias/n, normal))
	}

	ctx, span := s.tracer.Start(ctx, "session.dig")
	defer span.End()

	res := s.field.ApplyStamp(center, radius)
	s.digs++
	s.metrics.ObserveStamp(res.Changed)
	span.SetAttributes(
		attribute.Float64("dig.x", center.X),
		attribute.Float64("dig.y", center.Y),
		attribute.Float64("dig.z", center.Z),
		attribute.Float64("dig.radius", radius),
		attribute.Int("dig.changed", res.Changed),
	)

	s.remesh(ctx)
	s.sim.Activate()
	s.metrics.SetActive(true)

	s.logger.Info("⛏️ Копание в (%.3f, %.3f, %.3f): изменено %d из %d вершин",
		center.X, center.Y, center.Z, res.Changed, res.Touched)
	return res
}

// Update продвигает симуляцию на кадр длительностью dt секунд.
// Возвращает true, если сетка была перестроена.
func (s *Session) Update(ctx context.Context, dt float64) bool {
	s.frames++
	if !s.sim.Active() {
		return false
	}

	dt = math.Min(dt, s.cfg.Sim.MaxFrameDelta)
	if !(dt > 0) {
		return false
	}
	sub := dt / float64(s.cfg.Sim.SubSteps)

	changed := false
	for i := 0; i < s.cfg.Sim.SubSteps; i++ {
		if !s.sim.Active() {
			break
		}
		if s.sim.Step(sub) {
			changed = true
		}
		s.metrics.ObservePass(s.sim.LastPass().Transfers)
	}

	remeshed := false
	if changed {
		s.changedFrames++
		s.pending = true
		if s.changedFrames%uint64(s.cfg.Sim.RemeshEvery) == 0 {
			s.remesh(ctx)
			remeshed = true
		}
	}

	if !s.sim.Active() {
		s.metrics.SetActive(false)
		// Последние изменения должны попасть в сетку до простоя
		if s.pending {
			s.remesh(ctx)
			remeshed = true
		}
		totals := s.sim.Totals()
		s.logger.Info("💤 Осыпание затихло: %d проходов, %d переносов", totals.Passes, totals.Transfers)
	}
	return remeshed
}

// Stats возвращает сводку текущего состояния
func (s *Session) Stats() Stats {
	totals := s.sim.Totals()
	return Stats{
		Vertices:      s.mesh.VertexCount(),
		Triangles:     s.mesh.TriangleCount(),
		SimActive:     s.sim.Active(),
		Frames:        s.frames,
		ChangedFrames: s.changedFrames,
		Remeshes:      s.remeshes,
		Digs:          s.digs,
		Passes:        totals.Passes,
		Transfers:     totals.Transfers,
	}
}

// remesh извлекает сетку и передаёт её получателю
func (s *Session) remesh(ctx context.Context) {
	_, span := s.tracer.Start(ctx, "session.remesh")
	defer span.End()

	start := time.Now()
	s.mesh = s.field.ExtractMesh()
	took := time.Since(start)

	s.remeshes++
	s.pending = false
	s.metrics.ObserveMesh(s.mesh.VertexCount(), s.mesh.TriangleCount(), took)
	span.SetAttributes(
		attribute.Int("mesh.vertices", s.mesh.VertexCount()),
		attribute.Int("mesh.triangles", s.mesh.TriangleCount()),
	)
	s.logger.Debug("Сетка перестроена: %d вершин, %d треугольников за %v",
		s.mesh.VertexCount(), s.mesh.TriangleCount(), took)

	if s.sink != nil {
		s.sink(s.mesh)
	}
}

// SurfaceAt ищет сверху вниз первое пересечение поверхности в столбце,
// ближайшем к (x, z). Высота уточняется линейной интерполяцией phi.
func (s *Session) SurfaceAt(x, z float64) (r3.Vec, bool) {
	g := s.field.Grid()
	gp := g.GridPos(r3.Vec{X: x, Z: z})
	ix, iz := int(math.Round(gp.X)), int(math.Round(gp.Z))
	if ix < 0 || iz < 0 || ix > g.NX || iz > g.NZ {
		return r3.Vec{}, false
	}

	for iy := g.NY; iy > 0; iy-- {
		above := float64(s.field.Phi(vec.Vec3{X: ix, Y: iy, Z: iz}))
		below := float64(s.field.Phi(vec.Vec3{X: ix, Y: iy - 1, Z: iz}))
		if above > 0 && below <= 0 {
			t := above / (above - below)
			return r3.Vec{X: x, Y: g.WorldY(float64(iy) - t), Z: z}, true
		}
	}
	return r3.Vec{}, false
}
