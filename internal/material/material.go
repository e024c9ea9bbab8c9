// Package material определяет механические свойства грунта в точке мира.
// Классификатор не хранит состояния: результат зависит только от позиции
// и сида, поэтому его можно вызывать для каждой вершины на каждом проходе.
package material

import (
	"math"

	"github.com/annel0/soilsim/internal/noise"
	"gonum.org/v1/gonum/spatial/r3"
)

// Deg равен одному градусу в радианах
const Deg = math.Pi / 180

// Параметры стратиграфии
const (
	// Толщина одного слоя в метрах
	LayerThickness = 0.055
	// Число чередующихся пресетов
	LayerCount = 7

	warpFreqLow  = 2.5
	warpAmpLow   = 0.04
	warpFreqHigh = 7.0
	warpAmpHigh  = 0.012

	lensFreq      = 6.0
	lensThreshold = 0.55

	// CohesionBonus переводит сцепление в прибавку к углу устойчивости
	CohesionBonus = 0.9
)

// Слегка наклонённая нормаль напластования
var beddingAxis = r3.Unit(r3.Vec{X: 0.05, Y: 1, Z: 0.03})

// Properties описывает механические свойства грунта
type Properties struct {
	FrictionAngle  float64 // Угол внутреннего трения, рад
	Cohesion       float64 // Сцепление, [0, 1]
	SpecificWeight float64 // Относительный удельный вес
}

// EffectiveAngle возвращает угол устойчивости с учётом сцепления
func (p Properties) EffectiveAngle() float64 {
	return p.FrictionAngle + p.Cohesion*CohesionBonus
}

// Preset описывает именованный набор свойств
type Preset struct {
	Name       string
	Properties Properties
}

// Пресеты слоёв в порядке чередования
var presets = [LayerCount]Preset{
	{Name: "dry_sand", Properties: Properties{FrictionAngle: 32 * Deg, Cohesion: 0.03, SpecificWeight: 1.0}},
	{Name: "clay", Properties: Properties{FrictionAngle: 20 * Deg, Cohesion: 0.80, SpecificWeight: 1.1}},
	{Name: "silt", Properties: Properties{FrictionAngle: 28 * Deg, Cohesion: 0.15, SpecificWeight: 1.0}},
	{Name: "organic", Properties: Properties{FrictionAngle: 25 * Deg, Cohesion: 0.30, SpecificWeight: 0.8}},
	{Name: "gravel", Properties: Properties{FrictionAngle: 30 * Deg, Cohesion: 0.12, SpecificWeight: 1.3}},
	{Name: "loam", Properties: Properties{FrictionAngle: 26 * Deg, Cohesion: 0.45, SpecificWeight: 1.05}},
	{Name: "sandy_silt", Properties: Properties{FrictionAngle: 30 * Deg, Cohesion: 0.08, SpecificWeight: 1.0}},
}

// gravelLens используется для гравийных линз поверх слоёв
var gravelLens = Preset{
	Name:       "gravel_lens",
	Properties: Properties{FrictionAngle: 30 * Deg, Cohesion: 0.12, SpecificWeight: 1.3},
}

// PresetForLayer возвращает пресет слоя; индекс приводится по модулю LayerCount
func PresetForLayer(layer int) Preset {
	return presets[wrapLayer(layer)]
}

// GravelLens возвращает пресет гравийной линзы
func GravelLens() Preset {
	return gravelLens
}

// Sample содержит подробный результат классификации точки
type Sample struct {
	Layer      int     // Номер слоя в [0, LayerCount)
	Coord      float64 // Стратиграфическая координата в толщинах слоя
	Lens       bool    // Точка попала в гравийную линзу
	Name       string
	Properties Properties
}

// Classifier отображает мировую позицию в свойства грунта
type Classifier struct {
	Seed int64
}

// NewClassifier создаёт классификатор для сида мира
func NewClassifier(seed int64) Classifier {
	return Classifier{Seed: seed}
}

// At возвращает свойства грунта в точке p
func (c Classifier) At(p r3.Vec) Properties {
	return c.Sample(p).Properties
}

// Sample классифицирует точку p
func (c Classifier) Sample(p r3.Vec) Sample {
	coord := c.LayerCoord(p)
	layer := wrapLayer(int(math.Floor(coord)))

	if noise.Noise3D(p.X*lensFreq, p.Y*lensFreq, p.Z*lensFreq, c.Seed) > lensThreshold {
		return Sample{
			Layer:      layer,
			Coord:      coord,
			Lens:       true,
			Name:       gravelLens.Name,
			Properties: gravelLens.Properties,
		}
	}

	preset := presets[layer]
	return Sample{
		Layer:      layer,
		Coord:      coord,
		Name:       preset.Name,
		Properties: preset.Properties,
	}
}

// LayerCoord возвращает волнистую стратиграфическую координату в толщинах слоя
func (c Classifier) LayerCoord(p r3.Vec) float64 {
	warp := noise.Noise3D(p.X*warpFreqLow, p.Y*warpFreqLow, p.Z*warpFreqLow, c.Seed)*warpAmpLow +
		noise.Noise3D(p.X*warpFreqHigh, p.Y*warpFreqHigh, p.Z*warpFreqHigh, c.Seed)*warpAmpHigh
	s := r3.Dot(p, beddingAxis) + warp
	return s / LayerThickness
}

func wrapLayer(layer int) int {
	return ((layer % LayerCount) + LayerCount) % LayerCount
}
