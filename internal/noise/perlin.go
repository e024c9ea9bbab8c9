package noise

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// Параметры генератора Перлина
const (
	perlinAlpha = 2.0 // Сглаживание шума
	perlinBeta  = 2.0 // Частота шума

	// Сколько октав строится заранее
	maxPerlinOctaves = 8
)

// Perlin реализует градиентный шум на базе go-perlin. Для каждой октавы заранее
// создаётся отдельный одноктавный генератор со своим сидом, после
// конструирования структура только читается.
type Perlin struct {
	octaves [maxPerlinOctaves]*perlin.Perlin
}

// NewPerlin инициализирует генераторы шума Перлина с указанным сидом
func NewPerlin(seed int64) Sampler {
	p := &Perlin{}
	for i := range p.octaves {
		p.octaves[i] = perlin.NewPerlin(perlinAlpha, perlinBeta, 1, seed+int64(i*octaveSeedStep))
	}
	return p
}

// Noise3D возвращает значение шума Перлина, ограниченное [-1, 1]
func (p *Perlin) Noise3D(x, y, z float64) float64 {
	return clampUnit(p.octaves[0].Noise3D(x, y, z))
}

// FBM3D складывает октавы так же, как FBM3D для value-шума.
// Число октав ограничено maxPerlinOctaves.
func (p *Perlin) FBM3D(x, y, z float64, octaves int) float64 {
	if octaves <= 0 {
		return 0
	}
	if octaves > maxPerlinOctaves {
		octaves = maxPerlinOctaves
	}

	value := 0.0
	amplitude := 1.0
	frequency := 1.0
	maxAmp := 0.0
	for i := 0; i < octaves; i++ {
		value += clampUnit(p.octaves[i].Noise3D(x*frequency, y*frequency, z*frequency)) * amplitude
		maxAmp += amplitude
		amplitude *= 0.5
		frequency *= 2
	}
	return value / maxAmp
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
