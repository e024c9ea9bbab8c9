package session

import (
	"context"
	"math"
	"testing"

	"github.com/annel0/soilsim/internal/config"
	"github.com/annel0/soilsim/internal/logging"
	"github.com/annel0/soilsim/internal/material"
	"github.com/annel0/soilsim/internal/metrics"
	"github.com/annel0/soilsim/internal/vec"
	"github.com/annel0/soilsim/internal/voxel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

type constMaterial material.Properties

func (m constMaterial) At(r3.Vec) material.Properties {
	return material.Properties(m)
}

var (
	// slippery осыпается почти на любом уклоне
	slippery = constMaterial{FrictionAngle: 1 * material.Deg, SpecificWeight: 1}
	// rigid не осыпается никогда
	rigid = constMaterial{FrictionAngle: math.Pi, SpecificWeight: 1}
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Grid = config.GridConfig{NX: 16, NY: 16, NZ: 16, VoxelSize: 0.025, SurfaceIY: 8}
	return cfg
}

func quietLogger(t *testing.T) *logging.Logger {
	t.Helper()
	l, err := logging.NewLoggerWithOptions("session", logging.Options{ConsoleLevel: logging.ERROR})
	require.NoError(t, err)
	return l
}

func newSession(t *testing.T, cfg *config.Config, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger(t))}, opts...)
	s, err := New(cfg, opts...)
	require.NoError(t, err)
	return s
}

// gathered возвращает значение метрики без меток из регистра
func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			return m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			return m.GetGauge().GetValue()
		case m.GetHistogram() != nil:
			return float64(m.GetHistogram().GetSampleCount())
		}
	}
	t.Fatalf("метрика %s не найдена", name)
	return 0
}

func TestNewBuildsInitialMesh(t *testing.T) {
	var meshes []voxel.Mesh
	s := newSession(t, testConfig(), WithMeshSink(func(m voxel.Mesh) { meshes = append(meshes, m) }))

	stats := s.Stats()
	assert.Greater(t, stats.Triangles, 0, "рельеф пересекает поверхность")
	assert.Equal(t, s.Mesh().VertexCount(), stats.Vertices)
	assert.False(t, stats.SimActive, "до копания симуляция простаивает")
	assert.Equal(t, uint64(1), stats.Remeshes)
	require.Len(t, meshes, 1)
	assert.Equal(t, s.Mesh(), meshes[0])
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Grid.SurfaceIY = 99
	_, err := New(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewIsDeterministic(t *testing.T) {
	a := newSession(t, testConfig())
	b := newSession(t, testConfig())
	assert.Equal(t, a.Mesh(), b.Mesh())

	cfg := testConfig()
	cfg.World.Noise = "perlin"
	c := newSession(t, cfg)
	assert.Greater(t, c.Stats().Triangles, 0)
}

func TestDigBiasesIntoSolidAndActivates(t *testing.T) {
	s := newSession(t, testConfig())
	before := s.Mesh()

	point := r3.Vec{X: 0, Y: 0, Z: 0}
	res := s.Dig(context.Background(), point, r3.Vec{Y: 2})
	require.Greater(t, res.Changed, 0)
	assert.True(t, s.Active())

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Digs)
	assert.Equal(t, uint64(2), stats.Remeshes, "копание перестраивает сетку сразу")
	assert.NotEqual(t, before, s.Mesh())

	// Центр уходит внутрь на 0.4 радиуса по нормированной нормали
	g := s.Field().Grid()
	center := g.GridPos(r3.Vec{Y: -0.4 * 0.07})
	c := vec.Vec3{X: int(math.Round(center.X)), Y: int(math.Round(center.Y)), Z: int(math.Round(center.Z))}
	assert.Greater(t, s.Field().Phi(c), int16(0), "центр ямы — воздух")
}

func TestUpdateIdleIsNoop(t *testing.T) {
	s := newSession(t, testConfig())
	phi1, _ := s.Field().Snapshot()

	for i := 0; i < 5; i++ {
		assert.False(t, s.Update(context.Background(), 1.0/60))
	}

	phi2, _ := s.Field().Snapshot()
	assert.Equal(t, phi1, phi2)
	stats := s.Stats()
	assert.Equal(t, uint64(5), stats.Frames)
	assert.Zero(t, stats.Passes)
}

func TestUpdateRemeshCadence(t *testing.T) {
	s := newSession(t, testConfig(), WithMaterials(slippery))
	s.Dig(context.Background(), r3.Vec{}, r3.Vec{Y: 1})

	remeshed := make([]bool, 0, 4)
	for i := 0; i < 4; i++ {
		remeshed = append(remeshed, s.Update(context.Background(), 1.0/60))
	}

	stats := s.Stats()
	require.True(t, stats.SimActive, "скользкий грунт продолжает осыпаться")
	assert.Equal(t, uint64(4), stats.ChangedFrames)
	assert.Equal(t, []bool{false, true, false, true}, remeshed, "сетка перестраивается каждый второй изменённый кадр")
	assert.Equal(t, uint64(4), stats.Remeshes)
	assert.Equal(t, uint64(16), stats.Passes, "четыре подшага на кадр")
	assert.Greater(t, stats.Transfers, uint64(0))
}

func TestUpdateClampsFrameDelta(t *testing.T) {
	a := newSession(t, testConfig(), WithMaterials(slippery))
	b := newSession(t, testConfig(), WithMaterials(slippery))
	a.Dig(context.Background(), r3.Vec{}, r3.Vec{Y: 1})
	b.Dig(context.Background(), r3.Vec{}, r3.Vec{Y: 1})

	a.Update(context.Background(), 10)
	b.Update(context.Background(), 1.0/30)

	phiA, _ := a.Field().Snapshot()
	phiB, _ := b.Field().Snapshot()
	assert.Equal(t, phiB, phiA, "длинный кадр ограничивается 1/30 с")

	before, _ := a.Field().Snapshot()
	assert.False(t, a.Update(context.Background(), -1))
	after, _ := a.Field().Snapshot()
	assert.Equal(t, before, after, "отрицательный шаг ничего не делает")
}

func TestUpdateGoesIdle(t *testing.T) {
	cfg := testConfig()
	cfg.Sim.IdleThreshold = 8
	s := newSession(t, cfg, WithMaterials(rigid))
	s.Dig(context.Background(), r3.Vec{}, r3.Vec{Y: 1})

	assert.False(t, s.Update(context.Background(), 1.0/60))
	assert.True(t, s.Active())
	assert.False(t, s.Update(context.Background(), 1.0/60), "без изменений сетка не перестраивается")
	assert.False(t, s.Active(), "восемь проходов без изменений — простой")

	stats := s.Stats()
	assert.Equal(t, uint64(8), stats.Passes)
	assert.Zero(t, stats.ChangedFrames)
	assert.Equal(t, uint64(2), stats.Remeshes)
}

func TestMetricsWired(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Sim.IdleThreshold = 4
	s := newSession(t, cfg, WithMetrics(rec), WithMaterials(rigid))
	assert.Equal(t, 1.0, gathered(t, reg, "soil_mesh_extractions_total"))

	s.Dig(context.Background(), r3.Vec{}, r3.Vec{Y: 1})
	assert.Equal(t, 1.0, gathered(t, reg, "soil_stamps_total"))
	assert.Equal(t, 1.0, gathered(t, reg, "soil_erosion_active"))
	assert.Equal(t, 2.0, gathered(t, reg, "soil_mesh_extract_seconds"))

	s.Update(context.Background(), 1.0/60)
	assert.Equal(t, 4.0, gathered(t, reg, "soil_erosion_passes_total"))
	assert.Equal(t, 0.0, gathered(t, reg, "soil_erosion_active"))
	assert.Equal(t, float64(s.Stats().Triangles), gathered(t, reg, "soil_mesh_triangles"))
}

func TestMaterialAtMatchesClassifier(t *testing.T) {
	s := newSession(t, testConfig())
	p := r3.Vec{X: 0.05, Y: -0.1, Z: 0.02}
	assert.Equal(t, material.NewClassifier(42).Sample(p), s.MaterialAt(p))
}

func TestSurfaceAt(t *testing.T) {
	s := newSession(t, testConfig())

	p, ok := s.SurfaceAt(0.05, -0.03)
	require.True(t, ok)
	assert.Equal(t, 0.05, p.X)
	assert.Equal(t, -0.03, p.Z)
	assert.InDelta(t, 0.0, p.Y, 0.2, "поверхность около номинального уровня")

	// Точка на поверхности лежит между воздухом сверху и грунтом снизу
	g := s.Field().Grid()
	gp := g.GridPos(p)
	col := vec.Vec3{X: int(math.Round(gp.X)), Z: int(math.Round(gp.Z))}
	up, down := col, col
	down.Y = int(math.Floor(gp.Y))
	up.Y = down.Y + 1
	assert.Greater(t, s.Field().Phi(up), int16(0))
	assert.LessOrEqual(t, s.Field().Phi(down), int16(0))

	_, ok = s.SurfaceAt(10, 10)
	assert.False(t, ok, "столбец вне решётки")
}
