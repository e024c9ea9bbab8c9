// Package noise содержит детерминированный решёточный value-шум и его
// фрактальную сумму (fBm). Все функции чистые: одинаковые аргументы дают
// одинаковый результат в любом процессе.
package noise

import "math"

// Константы перемешивания решёточного хеша
const (
	primeX    = 73856093
	primeY    = 19349663
	primeZ    = 83492791
	primeSeed = 48611

	// octaveSeedStep сдвигает сид каждой октавы fBm, чтобы слои не коррелировали
	octaveSeedStep = 31
)

// fade: квинтическая кривая сглаживания 6t⁵−15t⁴+10t³
func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Hash3 возвращает псевдослучайное значение в [0, 1) для узла решётки.
// Арифметика 32-битная с переполнением, как у целочисленного умножения в C.
func Hash3(ix, iy, iz int32, seed int64) float64 {
	h := (ix * primeX) ^ (iy * primeY) ^ (iz * primeZ) ^ (int32(seed) * primeSeed)
	h = (h >> 13) ^ h
	h = h*(h*h*15731+789221) + 1376312589
	return unitHash(h)
}

// unitHash отображает младшие 31 бит хэша в [0, 1)
func unitHash(h int32) float64 {
	return float64(h&0x7fffffff) / (1 << 31)
}

// Noise3D возвращает value-шум в диапазоне [-1, 1]
func Noise3D(x, y, z float64, seed int64) float64 {
	fx0 := math.Floor(x)
	fy0 := math.Floor(y)
	fz0 := math.Floor(z)

	ix, iy, iz := int32(fx0), int32(fy0), int32(fz0)
	sx := fade(x - fx0)
	sy := fade(y - fy0)
	sz := fade(z - fz0)

	n000 := Hash3(ix, iy, iz, seed)
	n100 := Hash3(ix+1, iy, iz, seed)
	n010 := Hash3(ix, iy+1, iz, seed)
	n110 := Hash3(ix+1, iy+1, iz, seed)
	n001 := Hash3(ix, iy, iz+1, seed)
	n101 := Hash3(ix+1, iy, iz+1, seed)
	n011 := Hash3(ix, iy+1, iz+1, seed)
	n111 := Hash3(ix+1, iy+1, iz+1, seed)

	v := lerp(
		lerp(lerp(n000, n100, sx), lerp(n010, n110, sx), sy),
		lerp(lerp(n001, n101, sx), lerp(n011, n111, sx), sy),
		sz,
	)
	return v*2 - 1
}

// FBM3D суммирует octaves слоёв Noise3D с удвоением частоты и
// уменьшением амплитуды вдвое; результат нормирован на сумму амплитуд.
func FBM3D(x, y, z float64, octaves int, seed int64) float64 {
	if octaves <= 0 {
		return 0
	}

	value := 0.0
	amplitude := 1.0
	frequency := 1.0
	maxAmp := 0.0
	for i := 0; i < octaves; i++ {
		octaveSeed := seed + int64(i*octaveSeedStep)
		value += Noise3D(x*frequency, y*frequency, z*frequency, octaveSeed) * amplitude
		maxAmp += amplitude
		amplitude *= 0.5
		frequency *= 2
	}
	return value / maxAmp
}

// Value реализует value-шум с фиксированным сидом
type Value struct {
	Seed int64
}

// NewValue создаёт Sampler на основе value-шума
func NewValue(seed int64) Sampler {
	return Value{Seed: seed}
}

// Noise3D реализует Sampler
func (v Value) Noise3D(x, y, z float64) float64 {
	return Noise3D(x, y, z, v.Seed)
}

// FBM3D реализует Sampler
func (v Value) FBM3D(x, y, z float64, octaves int) float64 {
	return FBM3D(x, y, z, octaves, v.Seed)
}
