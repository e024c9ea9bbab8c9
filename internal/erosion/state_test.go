package erosion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateTransitions(t *testing.T) {
	var s State
	assert.False(t, s.Active)

	s.activate()
	assert.Equal(t, State{Active: true}, s)

	assert.False(t, s.record(false, 3))
	assert.False(t, s.record(false, 3))
	assert.Equal(t, 2, s.IdlePasses)

	// Изменение сбрасывает счётчик простоя
	assert.False(t, s.record(true, 3))
	assert.Equal(t, State{Active: true}, s)

	assert.False(t, s.record(false, 3))
	assert.False(t, s.record(false, 3))
	assert.True(t, s.record(false, 3), "третий подряд проход без изменений — переход в простой")
	assert.False(t, s.Active)

	s.activate()
	assert.Equal(t, State{Active: true}, s, "повторная активация обнуляет счётчик")
}
