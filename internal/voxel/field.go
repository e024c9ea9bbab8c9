// Package voxel хранит плотное поле знакового расстояния грунта, редактирует
// его сферическими штампами и извлекает изоповерхность в треугольную сетку.
//
// Поле не синхронизировано: им владеет и изменяет его один вызывающий.
package voxel

import (
	"math"

	"github.com/annel0/soilsim/internal/noise"
	"github.com/annel0/soilsim/internal/vec"
	"gonum.org/v1/gonum/spatial/r3"
)

// Пределы квантованного поля
const (
	PhiMax int16 = 32767
	PhiMin int16 = -32767

	// FreshUntouched: вершина не менялась с инициализации
	FreshUntouched uint8 = 255
	// FreshDisturbed: вершина изменена последней правкой или переносом
	FreshDisturbed uint8 = 0
)

// Field хранит плотное поле phi и свежести вершин
type Field struct {
	grid  Grid
	phi   []int16
	fresh []uint8
	noise noise.Factory
}

// Option настраивает Field
type Option func(*Field)

// WithNoise задаёт генератор шума для InitTerrain
func WithNoise(factory noise.Factory) Option {
	return func(f *Field) {
		if factory != nil {
			f.noise = factory
		}
	}
}

// NewField создаёт поле заданной решётки. Всё пространство изначально
// воздух (phi = 0), свежесть 255.
func NewField(grid Grid, opts ...Option) (*Field, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	f := &Field{
		grid:  grid,
		phi:   make([]int16, grid.VertexCount()),
		fresh: make([]uint8, grid.VertexCount()),
		noise: noise.NewValue,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.resetFreshness()
	return f, nil
}

// Grid возвращает параметры решётки
func (f *Field) Grid() Grid {
	return f.grid
}

// Contains проверяет, принадлежит ли вершина решётке
func (f *Field) Contains(c vec.Vec3) bool {
	return f.grid.Contains(c)
}

// Index возвращает линейный индекс вершины
func (f *Field) Index(c vec.Vec3) int {
	return f.grid.Index(c.X, c.Y, c.Z)
}

// Phi возвращает значение поля в вершине
func (f *Field) Phi(c vec.Vec3) int16 {
	return f.phi[f.Index(c)]
}

// Freshness возвращает свежесть вершины
func (f *Field) Freshness(c vec.Vec3) uint8 {
	return f.fresh[f.Index(c)]
}

// WorldPos возвращает мировую позицию вершины
func (f *Field) WorldPos(c vec.Vec3) r3.Vec {
	return f.grid.WorldPos(float64(c.X), float64(c.Y), float64(c.Z))
}

// Snapshot возвращает копии буферов phi и свежести
func (f *Field) Snapshot() ([]int16, []uint8) {
	phi := make([]int16, len(f.phi))
	copy(phi, f.phi)
	fresh := make([]uint8, len(f.fresh))
	copy(fresh, f.fresh)
	return phi, fresh
}

// Gradient возвращает ненормированный градиент phi по центральным
// разностям; на границах используются односторонние разности.
func (f *Field) Gradient(c vec.Vec3) r3.Vec {
	g := f.grid
	x0, x1 := max(0, c.X-1), min(g.NX, c.X+1)
	y0, y1 := max(0, c.Y-1), min(g.NY, c.Y+1)
	z0, z1 := max(0, c.Z-1), min(g.NZ, c.Z+1)

	return r3.Vec{
		X: float64(f.phi[g.Index(x1, c.Y, c.Z)]) - float64(f.phi[g.Index(x0, c.Y, c.Z)]),
		Y: float64(f.phi[g.Index(c.X, y1, c.Z)]) - float64(f.phi[g.Index(c.X, y0, c.Z)]),
		Z: float64(f.phi[g.Index(c.X, c.Y, z1)]) - float64(f.phi[g.Index(c.X, c.Y, z0)]),
	}
}

// Transfer переносит amount единиц поля из src в dst: источник становится
// ближе к воздуху, приёмник — к грунту. Обе вершины помечаются свежими.
func (f *Field) Transfer(src, dst vec.Vec3, amount int) {
	si := f.Index(src)
	di := f.Index(dst)

	f.phi[si] = clampPhi(int(f.phi[si]) + amount)
	f.phi[di] = clampPhi(int(f.phi[di]) - amount)
	f.fresh[si] = FreshDisturbed
	f.fresh[di] = FreshDisturbed
}

func (f *Field) resetFreshness() {
	for i := range f.fresh {
		f.fresh[i] = FreshUntouched
	}
}

// quantize переводит расстояние в квантованное значение поля
func quantize(dist, phiScale float64) int16 {
	n := math.Max(-1, math.Min(1, dist/phiScale))
	return int16(math.Round(n * float64(PhiMax)))
}

func clampPhi(v int) int16 {
	if v > int(PhiMax) {
		return PhiMax
	}
	if v < int(PhiMin) {
		return PhiMin
	}
	return int16(v)
}
