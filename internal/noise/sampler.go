package noise

import (
	"fmt"
	"strings"
)

// Sampler описывает источник трёхмерного шума с зафиксированным сидом.
// Значения обоих методов лежат примерно в [-1, 1].
type Sampler interface {
	Noise3D(x, y, z float64) float64
	FBM3D(x, y, z float64, octaves int) float64
}

// Factory создаёт Sampler для указанного сида
type Factory func(seed int64) Sampler

// Имена поддерживаемых генераторов шума
const (
	KindValue  = "value"
	KindPerlin = "perlin"
)

// FactoryByName возвращает фабрику по имени из конфигурации.
// Пустое имя означает value-шум.
func FactoryByName(name string) (Factory, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", KindValue:
		return NewValue, nil
	case KindPerlin:
		return NewPerlin, nil
	default:
		return nil, fmt.Errorf("неизвестный генератор шума %q", name)
	}
}
