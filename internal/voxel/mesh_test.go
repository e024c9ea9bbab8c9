package voxel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func assertMeshConsistent(t *testing.T, m Mesh) {
	t.Helper()
	require.Equal(t, len(m.Positions), len(m.Normals), "позиции и нормали одной длины")
	require.Equal(t, len(m.Positions), len(m.Freshness)*3, "одна свежесть на вершину")
	require.Zero(t, len(m.Indices)%3, "индексы идут тройками")

	vertices := uint32(m.VertexCount())
	for i, idx := range m.Indices {
		if idx >= vertices {
			t.Fatalf("индекс %d = %d вне диапазона (%d вершин)", i, idx, vertices)
		}
	}
	for i, fr := range m.Freshness {
		if fr < 0 || fr > 1 {
			t.Fatalf("свежесть вершины %d = %f вне [0,1]", i, fr)
		}
	}
}

func vertexAt(m Mesh, i uint32) r3.Vec {
	return r3.Vec{X: float64(m.Positions[3*i]), Y: float64(m.Positions[3*i+1]), Z: float64(m.Positions[3*i+2])}
}

func normalAt(m Mesh, i uint32) r3.Vec {
	return r3.Vec{X: float64(m.Normals[3*i]), Y: float64(m.Normals[3*i+1]), Z: float64(m.Normals[3*i+2])}
}

// outwardRatio возвращает долю треугольников, чья нормаль грани согласована с нормалями вершин
func outwardRatio(m Mesh) float64 {
	if m.TriangleCount() == 0 {
		return 0
	}
	good := 0
	for i := 0; i < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		face := r3.Cross(r3.Sub(vertexAt(m, b), vertexAt(m, a)), r3.Sub(vertexAt(m, c), vertexAt(m, a)))
		avg := r3.Add(r3.Add(normalAt(m, a), normalAt(m, b)), normalAt(m, c))
		if r3.Dot(face, avg) > 0 {
			good++
		}
	}
	return float64(good) / float64(m.TriangleCount())
}

func TestExtractMeshTerrainNonEmpty(t *testing.T) {
	f := newTerrainField(t, 42)
	m := f.ExtractMesh()

	assertMeshConsistent(t, m)
	assert.Greater(t, m.TriangleCount(), 0, "рельеф пересекает поверхность около y=0")
	assert.Greater(t, m.VertexCount(), 0)

	for _, fr := range m.Freshness {
		require.Equal(t, float32(1), fr, "до правок весь грунт нетронут")
	}
	for i := uint32(0); i < uint32(m.VertexCount()); i++ {
		p := vertexAt(m, i)
		assert.InDelta(t, 0.0, p.Y, 0.2, "вершины лежат около номинальной поверхности")
		n := normalAt(m, i)
		assert.InDelta(t, 1.0, r3.Norm(n), 1e-5, "нормали единичные")
	}
}

func TestExtractMeshIdempotent(t *testing.T) {
	f := newTerrainField(t, 42)
	f.ApplyStamp(r3.Vec{X: 0.05, Y: 0, Z: 0.05}, 0.07)

	m1 := f.ExtractMesh()
	m2 := f.ExtractMesh()
	assert.Equal(t, m1, m2, "повторное извлечение без правок даёт ту же сетку")
}

func TestExtractMeshFlatPlane(t *testing.T) {
	f, err := NewField(smallGrid())
	require.NoError(t, err)
	// Плоскость посередине между строками решётки, чтобы не попадать в узлы
	f.InitSDF(func(p r3.Vec) float64 { return p.Y - 0.0125 })

	m := f.ExtractMesh()
	assertMeshConsistent(t, m)

	g := f.Grid()
	assert.Equal(t, g.NX*g.NZ, m.VertexCount(), "по вершине в каждом столбце ячеек")
	assert.Equal(t, 2*(g.NX-1)*(g.NZ-1), m.TriangleCount(), "граничные четырёхугольники пропускаются")

	for i := uint32(0); i < uint32(m.VertexCount()); i++ {
		assert.InDelta(t, 0.0125, vertexAt(m, i).Y, 1e-4)
		n := normalAt(m, i)
		assert.InDelta(t, 1.0, n.Y, 1e-6, "нормаль плоскости направлена вверх")
	}
	assert.Equal(t, 1.0, outwardRatio(m), "все треугольники смотрят в воздух")
}

func TestExtractMeshSphereWinding(t *testing.T) {
	f, err := NewField(smallGrid())
	require.NoError(t, err)
	center := r3.Vec{X: 0.003, Y: 0.002, Z: -0.004}
	f.InitSDF(func(p r3.Vec) float64 { return r3.Norm(r3.Sub(p, center)) - 0.11 })

	m := f.ExtractMesh()
	assertMeshConsistent(t, m)
	require.Greater(t, m.TriangleCount(), 0)

	for i := uint32(0); i < uint32(m.VertexCount()); i++ {
		d := r3.Norm(r3.Sub(vertexAt(m, i), center))
		assert.InDelta(t, 0.11, d, 0.02, "вершины лежат на сфере")
	}
	assert.GreaterOrEqual(t, outwardRatio(m), 0.95, "ориентация треугольников согласована по всем трём осям")
}

func TestExtractMeshFreshnessAfterStamp(t *testing.T) {
	f := newTerrainField(t, 42)
	f.ApplyStamp(r3.Vec{X: 0, Y: -0.03, Z: 0}, 0.07)
	m := f.ExtractMesh()
	assertMeshConsistent(t, m)

	disturbed := 0
	for i, fr := range m.Freshness {
		if fr < 1 {
			disturbed++
			p := vertexAt(m, uint32(i))
			assert.Less(t, math.Hypot(p.X, p.Z), 0.2, "свежие вершины сосредоточены у ямы")
		}
	}
	assert.Greater(t, disturbed, 0, "вырезанная область должна быть видна в свежести")
}

func TestExtractMeshUniformField(t *testing.T) {
	f, err := NewField(smallGrid())
	require.NoError(t, err)

	// Поле целиком воздух
	f.InitSDF(func(r3.Vec) float64 { return 1 })
	m := f.ExtractMesh()
	assert.Zero(t, m.VertexCount())
	assert.Zero(t, m.TriangleCount())

	// Поле целиком грунт
	f.InitSDF(func(r3.Vec) float64 { return -1 })
	m = f.ExtractMesh()
	assert.Zero(t, m.VertexCount())
	assert.Zero(t, m.TriangleCount())
}
