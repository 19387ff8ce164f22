package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPtrPacking(t *testing.T) {
	p := New(true, 12345)
	assert.True(t, p.Half())
	assert.EqualValues(t, 12345, p.Idx())

	q := New(false, 0)
	assert.False(t, q.Half())
	assert.EqualValues(t, 0, q.Idx())
}

func TestPtrNullDistinctFromZero(t *testing.T) {
	zero := New(false, 0)
	assert.False(t, zero.IsNull())
	assert.True(t, Null.IsNull())
	assert.NotEqual(t, zero, Null)
}

func TestPtrAdd(t *testing.T) {
	p := New(true, 100)
	q := p.Add(5)
	assert.EqualValues(t, 105, q.Idx())
	assert.Equal(t, p.Half(), q.Half())
}

func TestPtrIndexOverflowPanics(t *testing.T) {
	assert.Panics(t, func() {
		New(false, idxMask+1)
	})
}
