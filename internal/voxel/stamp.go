package voxel

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Запас в ячейках за геометрическим радиусом штампа
const stampMarginCells = 2

// StampResult содержит итог применения штампа
type StampResult struct {
	Touched int // Вершин в обработанной области
	Changed int // Вершин, у которых изменилось phi
}

// ApplyStamp вырезает сферу радиуса radius вокруг center (мировые
// координаты). Вершина может только стать ближе к воздуху:
// phi = max(phi, -sdf). Если изменилась ранее твёрдая вершина, её
// свежесть сбрасывается в 0. Области вне решётки молча пропускаются,
// неположительный радиус ничего не вырезает.
func (f *Field) ApplyStamp(center r3.Vec, radius float64) StampResult {
	var res StampResult
	if !(radius > 0) {
		return res
	}
	g := f.grid
	gc := g.GridPos(center)
	margin := math.Ceil(radius/g.VoxelSize) + stampMarginCells

	ixMin, ixMax, ok := stampRange(gc.X, margin, g.NX)
	if !ok {
		return res
	}
	iyMin, iyMax, ok := stampRange(gc.Y, margin, g.NY)
	if !ok {
		return res
	}
	izMin, izMax, ok := stampRange(gc.Z, margin, g.NZ)
	if !ok {
		return res
	}

	scale := g.PhiScale()
	for iz := izMin; iz <= izMax; iz++ {
		for iy := iyMin; iy <= iyMax; iy++ {
			for ix := ixMin; ix <= ixMax; ix++ {
				d := r3.Vec{X: float64(ix) - gc.X, Y: float64(iy) - gc.Y, Z: float64(iz) - gc.Z}
				dist := r3.Norm(d) * g.VoxelSize
				carved := quantize(-(dist - radius), scale)

				idx := g.Index(ix, iy, iz)
				old := f.phi[idx]
				res.Touched++
				if carved <= old {
					continue
				}

				f.phi[idx] = carved
				if old < 0 {
					f.fresh[idx] = FreshDisturbed
				}
				res.Changed++
			}
		}
	}
	return res
}

// stampRange возвращает диапазон индексов оси, пересечённый с [0, n]
func stampRange(center, margin float64, n int) (lo, hi int, ok bool) {
	fl := math.Floor(center - margin)
	fh := math.Ceil(center + margin)
	if math.IsNaN(fl) || math.IsNaN(fh) || fh < 0 || fl > float64(n) {
		return 0, 0, false
	}
	return int(math.Max(0, fl)), int(math.Min(float64(n), fh)), true
}
