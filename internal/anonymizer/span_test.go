package anonymizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpanOverlaps(t *testing.T) {
	a := Span{Start: 5, End: 10}

	assert.True(t, a.Overlaps(Span{Start: 8, End: 12}))
	assert.True(t, a.Overlaps(Span{Start: 0, End: 6}))
	assert.True(t, a.Overlaps(Span{Start: 6, End: 8}))
	assert.True(t, a.Overlaps(Span{Start: 0, End: 20}))
	assert.True(t, a.Overlaps(a))

	// Half-open ranges: touching endpoints do not overlap.
	assert.False(t, a.Overlaps(Span{Start: 10, End: 15}))
	assert.False(t, a.Overlaps(Span{Start: 0, End: 5}))
	assert.False(t, a.Overlaps(Span{Start: 20, End: 25}))
}

func TestSpanOverlapsIsSymmetric(t *testing.T) {
	a := Span{Start: 3, End: 9}
	b := Span{Start: 8, End: 14}

	assert.Equal(t, a.Overlaps(b), b.Overlaps(a))
}

func TestSpanLen(t *testing.T) {
	assert.Equal(t, 5, Span{Start: 2, End: 7}.Len())
}

func TestSpanValidIn(t *testing.T) {
	assert.True(t, Span{Start: 0, End: 10}.validIn(10))
	assert.True(t, Span{Start: 3, End: 4}.validIn(10))

	assert.False(t, Span{Start: -1, End: 4}.validIn(10))
	assert.False(t, Span{Start: 4, End: 4}.validIn(10))
	assert.False(t, Span{Start: 6, End: 3}.validIn(10))
	assert.False(t, Span{Start: 0, End: 11}.validIn(10))
}
