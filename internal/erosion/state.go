package erosion

// State хранит конечный автомат симулятора: активен/простаивает плюс счётчик
// подряд идущих проходов без изменений.
type State struct {
	Active     bool
	IdlePasses int
}

// activate переводит автомат в активное состояние
func (s *State) activate() {
	s.Active = true
	s.IdlePasses = 0
}

// record учитывает результат прохода. Возвращает true, если автомат
// только что перешёл в простой.
func (s *State) record(changed bool, threshold int) bool {
	if changed {
		s.IdlePasses = 0
		return false
	}
	s.IdlePasses++
	if s.IdlePasses >= threshold {
		s.Active = false
		return true
	}
	return false
}
