package voxel

import (
	"errors"
	"fmt"

	"github.com/annel0/soilsim/internal/vec"
	"gonum.org/v1/gonum/spatial/r3"
)

// Значения по умолчанию для решётки
const (
	DefaultNX        = 64
	DefaultNY        = 32
	DefaultNZ        = 64
	DefaultVoxelSize = 0.025 // 2.5 см на воксель
	DefaultSurfaceIY = 24    // Индекс Y, где номинальная поверхность y=0
	DefaultSeed      = 42
	DefaultDigRadius = 0.07
)

// ErrInvalidGrid возвращается при некорректных параметрах решётки
var ErrInvalidGrid = errors.New("некорректные параметры решётки")

// Grid описывает размеры решётки и отображение в мировые координаты.
// NX×NY×NZ ячеек, (NX+1)×(NY+1)×(NZ+1) вершин.
type Grid struct {
	NX, NY, NZ int
	VoxelSize  float64
	SurfaceIY  int
}

// DefaultGrid возвращает решётку 64×32×64 с шагом 2.5 см
func DefaultGrid() Grid {
	return Grid{
		NX:        DefaultNX,
		NY:        DefaultNY,
		NZ:        DefaultNZ,
		VoxelSize: DefaultVoxelSize,
		SurfaceIY: DefaultSurfaceIY,
	}
}

// Validate проверяет параметры решётки
func (g Grid) Validate() error {
	if g.NX < 1 || g.NY < 1 || g.NZ < 1 {
		return fmt.Errorf("%w: размеры %dx%dx%d", ErrInvalidGrid, g.NX, g.NY, g.NZ)
	}
	if !(g.VoxelSize > 0) {
		return fmt.Errorf("%w: шаг вокселя %v", ErrInvalidGrid, g.VoxelSize)
	}
	if g.SurfaceIY < 0 || g.SurfaceIY > g.NY {
		return fmt.Errorf("%w: уровень поверхности %d вне [0, %d]", ErrInvalidGrid, g.SurfaceIY, g.NY)
	}
	return nil
}

// PhiScale возвращает расстояние, соответствующее полному диапазону phi
func (g Grid) PhiScale() float64 {
	return g.VoxelSize * 2
}

// VertexCount возвращает число вершин решётки
func (g Grid) VertexCount() int {
	return (g.NX + 1) * (g.NY + 1) * (g.NZ + 1)
}

// CellCount возвращает число ячеек решётки
func (g Grid) CellCount() int {
	return g.NX * g.NY * g.NZ
}

// Max возвращает максимальный индекс вершины
func (g Grid) Max() vec.Vec3 {
	return vec.Vec3{X: g.NX, Y: g.NY, Z: g.NZ}
}

// Contains проверяет, является ли c индексом вершины решётки
func (g Grid) Contains(c vec.Vec3) bool {
	return c.InBox(vec.Vec3{}, g.Max())
}

// Index возвращает линейный индекс вершины
func (g Grid) Index(ix, iy, iz int) int {
	return ix + iy*(g.NX+1) + iz*(g.NX+1)*(g.NY+1)
}

// WorldX переводит индекс X в мировую координату
func (g Grid) WorldX(ix float64) float64 {
	return (ix - float64(g.NX)/2) * g.VoxelSize
}

// WorldY переводит индекс Y в мировую координату
func (g Grid) WorldY(iy float64) float64 {
	return (iy - float64(g.SurfaceIY)) * g.VoxelSize
}

// WorldZ переводит индекс Z в мировую координату
func (g Grid) WorldZ(iz float64) float64 {
	return (iz - float64(g.NZ)/2) * g.VoxelSize
}

// WorldPos переводит дробные индексы решётки в мировые координаты
func (g Grid) WorldPos(gx, gy, gz float64) r3.Vec {
	return r3.Vec{X: g.WorldX(gx), Y: g.WorldY(gy), Z: g.WorldZ(gz)}
}

// GridPos переводит мировую точку в дробные индексы решётки
func (g Grid) GridPos(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: p.X/g.VoxelSize + float64(g.NX)/2,
		Y: p.Y/g.VoxelSize + float64(g.SurfaceIY),
		Z: p.Z/g.VoxelSize + float64(g.NZ)/2,
	}
}
