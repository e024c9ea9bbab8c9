package voxel

import "gonum.org/v1/gonum/spatial/r3"

// Параметры рельефа поверхности
const (
	detailFreq    = 3.0
	detailAmp     = 0.06
	detailOctaves = 3

	broadFreq       = 0.8
	broadAmp        = 0.1
	broadSeedOffset = 100
)

// SDF задаёт знаковое расстояние в мировых координатах, отрицательное внутри грунта
type SDF func(p r3.Vec) float64

// InitTerrain заполняет поле рельефом для сида: высота поверхности
// возмущается двумя слоями шума, свежесть сбрасывается в 255.
// Повторный вызов с тем же сидом даёт те же буферы.
func (f *Field) InitTerrain(seed int64) {
	detail := f.noise(seed)
	broad := f.noise(seed + broadSeedOffset)

	f.InitSDF(func(p r3.Vec) float64 {
		surface := detail.FBM3D(p.X*detailFreq, 0, p.Z*detailFreq, detailOctaves)*detailAmp +
			broad.Noise3D(p.X*broadFreq, 0, p.Z*broadFreq)*broadAmp
		return p.Y - surface
	})
}

// InitSDF заполняет поле из произвольной функции расстояния с тем же
// квантованием, что и у рельефа. Свежесть сбрасывается в 255.
func (f *Field) InitSDF(sdf SDF) {
	g := f.grid
	scale := g.PhiScale()

	for iz := 0; iz <= g.NZ; iz++ {
		for iy := 0; iy <= g.NY; iy++ {
			for ix := 0; ix <= g.NX; ix++ {
				p := g.WorldPos(float64(ix), float64(iy), float64(iz))
				f.phi[g.Index(ix, iy, iz)] = quantize(sdf(p), scale)
			}
		}
	}
	f.resetFreshness()
}
