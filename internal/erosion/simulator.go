// Package erosion релаксирует неустойчивые склоны поля: грунт у поверхности,
// чей уклон превышает угол устойчивости материала, переносится вниз по
// склону или падает по столбцу.
//
// Проход выполняется на месте в фиксированном порядке: вершины, обработанные
// позже, видят изменения, сделанные раньше в том же проходе.
package erosion

import (
	"math"

	"github.com/annel0/soilsim/internal/logging"
	"github.com/annel0/soilsim/internal/material"
	"github.com/annel0/soilsim/internal/vec"
	"github.com/annel0/soilsim/internal/voxel"
	"gonum.org/v1/gonum/spatial/r3"
)

// Params содержит константы релаксации
type Params struct {
	DepthCutoff   int16   // Глубже этого phi вершина считается внутренней
	GradientFloor float64 // Минимальная длина градиента
	TransferRate  float64 // Коэффициент K величины переноса
	SteepNormalY  float64 // Ниже этого n_y склон падает по столбцу
	LandingCutoff int16   // phi «плотного» грунта для поиска точки падения
	MinHorizontal float64 // Минимальная длина горизонтальной проекции нормали
	IdleThreshold int     // Проходов без изменений до перехода в простой
}

// DefaultParams возвращает стандартные константы
func DefaultParams() Params {
	return Params{
		DepthCutoff:   -20000,
		GradientFloor: 10,
		TransferRate:  28000,
		SteepNormalY:  0.25,
		LandingCutoff: -3000,
		MinHorizontal: 0.01,
		IdleThreshold: 60,
	}
}

// PassStats содержит итог одного прохода
type PassStats struct {
	Candidates int // Вершин у поверхности с соседним воздухом
	Unstable   int // Из них неустойчивых
	Transfers  int // Выполненных переносов
}

// Totals содержит накопленные счётчики симулятора
type Totals struct {
	Passes    uint64
	Transfers uint64
}

// MaterialSource отдаёт свойства грунта в мировой точке.
// material.Classifier реализует этот интерфейс.
type MaterialSource interface {
	At(p r3.Vec) material.Properties
}

// Simulator реализует осыпание грунта. Не владеет полем, но на время Step
// пользуется им монопольно.
type Simulator struct {
	field     *voxel.Field
	materials MaterialSource
	params    Params
	state     State
	last      PassStats
	totals    Totals
}

// NewSimulator создаёт симулятор для поля
func NewSimulator(field *voxel.Field, materials MaterialSource, params Params) *Simulator {
	if params.IdleThreshold < 1 {
		params.IdleThreshold = 1
	}
	return &Simulator{
		field:     field,
		materials: materials,
		params:    params,
	}
}

// Activate включает симуляцию и сбрасывает счётчик простоя
func (s *Simulator) Activate() {
	s.state.activate()
}

// Active сообщает, активна ли симуляция
func (s *Simulator) Active() bool {
	return s.state.Active
}

// State возвращает копию состояния автомата
func (s *Simulator) State() State {
	return s.state
}

// LastPass возвращает статистику последнего прохода
func (s *Simulator) LastPass() PassStats {
	return s.last
}

// Totals возвращает накопленные счётчики
func (s *Simulator) Totals() Totals {
	return s.totals
}

// Step выполняет один проход релаксации с шагом dt. В простое ничего не
// делает и возвращает false.
func (s *Simulator) Step(dt float64) bool {
	if !s.state.Active {
		return false
	}

	s.last = s.relax(dt)
	s.totals.Passes++
	s.totals.Transfers += uint64(s.last.Transfers)

	changed := s.last.Transfers > 0
	if s.state.record(changed, s.params.IdleThreshold) {
		logging.Debug("Осыпание остановлено после %d проходов без изменений", s.state.IdlePasses)
	}
	return changed
}

// relax выполняет один проход по внутренним вершинам в порядке z, y, x
func (s *Simulator) relax(dt float64) PassStats {
	var st PassStats
	g := s.field.Grid()

	for iz := 1; iz < g.NZ; iz++ {
		for iy := 1; iy < g.NY; iy++ {
			for ix := 1; ix < g.NX; ix++ {
				c := vec.Vec3{X: ix, Y: iy, Z: iz}
				p, ok := s.probe(c)
				if !ok {
					continue
				}
				st.Candidates++
				if !p.Unstable {
					continue
				}
				st.Unstable++

				amount := transferAmount(s.params.TransferRate, dt, p.Slope-p.Effective, p.Props)
				if amount < 1 {
					continue
				}

				dst, ok := s.destination(c, p.Normal)
				if !ok {
					continue
				}

				s.field.Transfer(c, dst, amount)
				st.Transfers++
			}
		}
	}
	return st
}

// Probe содержит оценку устойчивости вершины
type Probe struct {
	Normal    r3.Vec  // Единичная внешняя нормаль
	Slope     float64 // Угол от вертикали, рад
	Effective float64 // Угол устойчивости материала, рад
	Props     material.Properties
	Unstable  bool
}

// Probe оценивает вершину. ok = false, если вершина не является твёрдой
// вершиной у поверхности с соседним воздухом и устойчивым градиентом.
func (s *Simulator) Probe(c vec.Vec3) (Probe, bool) {
	g := s.field.Grid()
	if c.X < 1 || c.Y < 1 || c.Z < 1 || c.X >= g.NX || c.Y >= g.NY || c.Z >= g.NZ {
		return Probe{}, false
	}
	return s.probe(c)
}

func (s *Simulator) probe(c vec.Vec3) (Probe, bool) {
	f := s.field
	phi := f.Phi(c)

	// Только твёрдые вершины у поверхности
	if phi >= 0 || phi < s.params.DepthCutoff {
		return Probe{}, false
	}
	if !s.touchesAir(c) {
		return Probe{}, false
	}

	grad := f.Gradient(c)
	glen := r3.Norm(grad)
	if glen < s.params.GradientFloor {
		return Probe{}, false
	}
	n := r3.Scale(1/glen, grad)
	slope := math.Acos(math.Max(-1, math.Min(1, n.Y)))

	props := s.materials.At(f.WorldPos(c))
	effective := props.EffectiveAngle()
	return Probe{
		Normal:    n,
		Slope:     slope,
		Effective: effective,
		Props:     props,
		Unstable:  slope > effective,
	}, true
}

// UnstableVertices возвращает внутренние вершины, неустойчивые в текущем поле
func (s *Simulator) UnstableVertices() []vec.Vec3 {
	var out []vec.Vec3
	g := s.field.Grid()
	for iz := 1; iz < g.NZ; iz++ {
		for iy := 1; iy < g.NY; iy++ {
			for ix := 1; ix < g.NX; ix++ {
				c := vec.Vec3{X: ix, Y: iy, Z: iz}
				if p, ok := s.probe(c); ok && p.Unstable {
					out = append(out, c)
				}
			}
		}
	}
	return out
}

// touchesAir проверяет, есть ли среди шести соседей строго воздух
func (s *Simulator) touchesAir(c vec.Vec3) bool {
	for _, d := range vec.Neighbors6 {
		nb := c.Add(d)
		if !s.field.Contains(nb) {
			continue
		}
		if s.field.Phi(nb) > 0 {
			return true
		}
	}
	return false
}

// destination выбирает приёмник переноса: падение по столбцу для крутых и
// нависающих участков, иначе шаг решётки вниз по склону.
func (s *Simulator) destination(c vec.Vec3, n r3.Vec) (vec.Vec3, bool) {
	if n.Y < s.params.SteepNormalY {
		land := s.landingY(c)
		if land == c.Y {
			return vec.Vec3{}, false
		}
		return vec.Vec3{X: c.X, Y: land, Z: c.Z}, true
	}

	h := r3.Vec{X: n.X, Z: n.Z}
	hlen := r3.Norm(h)
	if hlen < s.params.MinHorizontal {
		return vec.Vec3{}, false
	}
	h = r3.Scale(1/hlen, h)
	dst := c.Add(vec.Vec3{
		X: int(math.Round(h.X)),
		Z: int(math.Round(h.Z)),
	})
	if !s.field.Contains(dst) {
		return vec.Vec3{}, false
	}
	return dst, true
}

// landingY ищет вниз по столбцу первую плотную вершину и возвращает строку
// над ней; если плотного грунта нет, возвращает дно решётки.
func (s *Simulator) landingY(c vec.Vec3) int {
	for iy := c.Y - 1; iy >= 0; iy-- {
		if s.field.Phi(vec.Vec3{X: c.X, Y: iy, Z: c.Z}) < s.params.LandingCutoff {
			return iy + 1
		}
	}
	return 0
}

// maxTransfer покрывает весь диапазон phi: больший перенос всё равно
// упрётся в ограничение поля
const maxTransfer = 2 * math.MaxInt16

// transferAmount вычисляет величину переноса для избыточного уклона excess.
// Результат лежит в [1, maxTransfer]; NaN (например, от dt = NaN) даёт 0,
// и перенос пропускается.
func transferAmount(k, dt, excess float64, props material.Properties) int {
	damping := 1 - props.Cohesion*props.Cohesion
	base := k * dt * math.Sin(excess) * damping * props.SpecificWeight
	if math.IsNaN(base) {
		return 0
	}
	return int(math.Round(math.Max(1, math.Min(maxTransfer, base))))
}
