package voxel

import (
	"math"

	"github.com/annel0/soilsim/internal/vec"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh содержит результат извлечения изоповерхности. Каждый вызов ExtractMesh
// создаёт новую сетку, вызывающий владеет буферами.
type Mesh struct {
	Positions []float32 // xyz в мировых координатах
	Normals   []float32 // единичные нормали, xyz
	Freshness []float32 // 0..1 на вершину, 1 — нетронутый грунт
	Indices   []uint32  // тройки индексов треугольников
}

// VertexCount возвращает число вершин
func (m Mesh) VertexCount() int {
	return len(m.Positions) / 3
}

// TriangleCount возвращает число треугольников
func (m Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Смещения восьми углов ячейки
var cornerOffsets = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1},
}

// Двенадцать рёбер ячейки как пары углов
var cellEdges = [12][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7}, // вдоль X
	{0, 2}, {1, 3}, {4, 6}, {5, 7}, // вдоль Y
	{0, 4}, {1, 5}, {2, 6}, {3, 7}, // вдоль Z
}

// noVertex отмечает ячейку без вершины поверхности
const noVertex = -1

// ExtractMesh строит сетку изоповерхности phi = 0 методом surface nets:
// одна вершина на пересекаемую ячейку в центроиде пересечений рёбер,
// затем четырёхугольник на каждое ребро решётки со сменой знака.
// Поле не меняется; повторный вызов без правок даёт тот же результат.
func (f *Field) ExtractMesh() Mesh {
	g := f.grid
	cellIndex := func(cx, cy, cz int) int {
		return cx + cy*g.NX + cz*g.NX*g.NY
	}

	vertMap := make([]int32, g.CellCount())
	for i := range vertMap {
		vertMap[i] = noVertex
	}

	var mesh Mesh
	f.placeVertices(&mesh, vertMap, cellIndex)
	f.emitQuads(&mesh, vertMap, cellIndex)
	return mesh
}

// placeVertices (фаза 1) ставит вершину в каждую ячейку, которую пересекает поверхность
func (f *Field) placeVertices(mesh *Mesh, vertMap []int32, cellIndex func(cx, cy, cz int) int) {
	g := f.grid
	var vals [8]float64

	for cz := 0; cz < g.NZ; cz++ {
		for cy := 0; cy < g.NY; cy++ {
			for cx := 0; cx < g.NX; cx++ {
				inside := 0
				for c, o := range cornerOffsets {
					v := f.phi[g.Index(cx+o[0], cy+o[1], cz+o[2])]
					vals[c] = float64(v)
					if v < 0 {
						inside++
					}
				}
				if inside == 0 || inside == 8 {
					continue
				}

				var sum r3.Vec
				count := 0
				freshAcc := 0.0
				for _, e := range cellEdges {
					a, b := e[0], e[1]
					if (vals[a] < 0) == (vals[b] < 0) {
						continue
					}
					t := vals[a] / (vals[a] - vals[b])
					oa, ob := cornerOffsets[a], cornerOffsets[b]
					p := r3.Vec{
						X: float64(oa[0]) + t*float64(ob[0]-oa[0]),
						Y: float64(oa[1]) + t*float64(ob[1]-oa[1]),
						Z: float64(oa[2]) + t*float64(ob[2]-oa[2]),
					}
					sum = r3.Add(sum, p)
					count++

					nearest := vec.Vec3{
						X: min(g.NX, cx+int(math.Round(p.X))),
						Y: min(g.NY, cy+int(math.Round(p.Y))),
						Z: min(g.NZ, cz+int(math.Round(p.Z))),
					}
					freshAcc += float64(f.fresh[f.Index(nearest)])
				}
				if count == 0 {
					continue
				}

				local := r3.Scale(1/float64(count), sum)
				gp := r3.Vec{X: float64(cx) + local.X, Y: float64(cy) + local.Y, Z: float64(cz) + local.Z}
				world := g.WorldPos(gp.X, gp.Y, gp.Z)

				nearest := vec.Vec3{
					X: int(math.Round(gp.X)),
					Y: int(math.Round(gp.Y)),
					Z: int(math.Round(gp.Z)),
				}.Clamp(vec.Vec3{}, g.Max())
				normal := unitOrZero(f.Gradient(nearest))

				vertMap[cellIndex(cx, cy, cz)] = int32(mesh.VertexCount())
				mesh.Positions = append(mesh.Positions, float32(world.X), float32(world.Y), float32(world.Z))
				mesh.Normals = append(mesh.Normals, float32(normal.X), float32(normal.Y), float32(normal.Z))
				mesh.Freshness = append(mesh.Freshness, float32(freshAcc/float64(count)/float64(FreshUntouched)))
			}
		}
	}
}

// emitQuads (фаза 2) строит четырёхугольники вдоль рёбер решётки со сменой знака.
// Каждое ребро разделяют четыре ячейки; если у любой нет вершины
// (например, на границе), четырёхугольник пропускается.
func (f *Field) emitQuads(mesh *Mesh, vertMap []int32, cellIndex func(cx, cy, cz int) int) {
	g := f.grid

	quad := func(insideFirst bool, flip bool, c0, c1, c2, c3 int) {
		v0, v1, v2, v3 := vertMap[c0], vertMap[c1], vertMap[c2], vertMap[c3]
		if v0 < 0 || v1 < 0 || v2 < 0 || v3 < 0 {
			return
		}
		if insideFirst != flip {
			mesh.Indices = append(mesh.Indices, uint32(v0), uint32(v1), uint32(v2), uint32(v0), uint32(v2), uint32(v3))
		} else {
			mesh.Indices = append(mesh.Indices, uint32(v0), uint32(v2), uint32(v1), uint32(v0), uint32(v3), uint32(v2))
		}
	}

	// Рёбра вдоль X: (ix,iy,iz) → (ix+1,iy,iz)
	for iz := 1; iz < g.NZ; iz++ {
		for iy := 1; iy < g.NY; iy++ {
			for ix := 0; ix < g.NX; ix++ {
				a := f.phi[g.Index(ix, iy, iz)]
				b := f.phi[g.Index(ix+1, iy, iz)]
				if (a < 0) == (b < 0) {
					continue
				}
				quad(a < 0, false,
					cellIndex(ix, iy-1, iz-1), cellIndex(ix, iy, iz-1),
					cellIndex(ix, iy, iz), cellIndex(ix, iy-1, iz))
			}
		}
	}

	// Рёбра вдоль Y: (ix,iy,iz) → (ix,iy+1,iz)
	for iz := 1; iz < g.NZ; iz++ {
		for iy := 0; iy < g.NY; iy++ {
			for ix := 1; ix < g.NX; ix++ {
				a := f.phi[g.Index(ix, iy, iz)]
				b := f.phi[g.Index(ix, iy+1, iz)]
				if (a < 0) == (b < 0) {
					continue
				}
				quad(a < 0, true,
					cellIndex(ix-1, iy, iz-1), cellIndex(ix, iy, iz-1),
					cellIndex(ix, iy, iz), cellIndex(ix-1, iy, iz))
			}
		}
	}

	// Рёбра вдоль Z: (ix,iy,iz) → (ix,iy,iz+1)
	for iz := 0; iz < g.NZ; iz++ {
		for iy := 1; iy < g.NY; iy++ {
			for ix := 1; ix < g.NX; ix++ {
				a := f.phi[g.Index(ix, iy, iz)]
				b := f.phi[g.Index(ix, iy, iz+1)]
				if (a < 0) == (b < 0) {
					continue
				}
				quad(a < 0, false,
					cellIndex(ix-1, iy-1, iz), cellIndex(ix, iy-1, iz),
					cellIndex(ix, iy, iz), cellIndex(ix-1, iy, iz))
			}
		}
	}
}

// unitOrZero нормирует v; вырожденный градиент даёт нулевую нормаль
func unitOrZero(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}
