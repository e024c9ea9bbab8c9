package vec

// Vec3 представляет трехмерный вектор с целочисленными координатами
// (индекс вершины решётки поля)
type Vec3 struct {
	X int
	Y int
	Z int
}

// Neighbors6 содержит смещения к шести соседям по граням
var Neighbors6 = [6]Vec3{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Clamp ограничивает каждую координату диапазоном [min, max]
func (v Vec3) Clamp(min, max Vec3) Vec3 {
	return Vec3{
		X: clampInt(v.X, min.X, max.X),
		Y: clampInt(v.Y, min.Y, max.Y),
		Z: clampInt(v.Z, min.Z, max.Z),
	}
}

// InBox проверяет, лежит ли вектор в замкнутом параллелепипеде [min, max]
func (v Vec3) InBox(min, max Vec3) bool {
	return v.X >= min.X && v.X <= max.X &&
		v.Y >= min.Y && v.Y <= max.Y &&
		v.Z >= min.Z && v.Z <= max.Z
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
