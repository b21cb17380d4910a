package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertySetAndValue(t *testing.T) {
	p := NewProperty(0x80, Capabilities{CanGet: true, MinSize: 1, MaxSize: 1})
	now := time.Unix(1000, 0)
	p.Set([]byte{0x30}, now)

	value, updatedAt := p.Value()
	require.Equal(t, []byte{0x30}, value)
	assert.True(t, updatedAt.Equal(now))
}

func TestPropertySetSameValueStillNotifies(t *testing.T) {
	p := NewProperty(0x80, Capabilities{})
	var updates []ValueUpdate
	p.Subscribe(func(u ValueUpdate) { updates = append(updates, u) })

	t1 := time.Unix(1000, 0)
	t2 := time.Unix(2000, 0)
	p.Set([]byte{0x30}, t1)
	p.Set([]byte{0x30}, t2)

	require.Len(t, updates, 2)
	second := updates[1]
	assert.Equal(t, string(second.New), string(second.Old))
	assert.True(t, second.PrevTime.Equal(t1))
	assert.True(t, second.NewTime.Equal(t2))
}

func TestPropertyUnsubscribe(t *testing.T) {
	p := NewProperty(0x80, Capabilities{})
	calls := 0
	unsubscribe := p.Subscribe(func(ValueUpdate) { calls++ })
	p.Set([]byte{0x01}, time.Now())
	unsubscribe()
	p.Set([]byte{0x02}, time.Now())

	assert.Equal(t, 1, calls)
}

func TestCapabilitiesSizeInRange(t *testing.T) {
	c := Capabilities{MinSize: 1, MaxSize: 1}
	assert.True(t, c.SizeInRange(1), "size 1 should be in range")
	assert.False(t, c.SizeInRange(2), "size 2 should be out of range")

	unbounded := Capabilities{}
	assert.True(t, unbounded.SizeInRange(100), "zero MaxSize should mean unbounded")
}
