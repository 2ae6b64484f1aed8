package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFragmentTracker_IgnoresUnfragmented(t *testing.T) {
	ft := NewFragmentTracker()

	ft.Observe(1, 0, false)
	ft.Observe(1, 0, false)

	assert.Zero(t, ft.Len())
	assert.Nil(t, ft.Offsets(1))
	assert.Empty(t, ft.Groups())
}

func TestFragmentTracker_GroupsByID(t *testing.T) {
	ft := NewFragmentTracker()

	ft.Observe(7, 0, true)
	ft.Observe(3, 1480, false)
	ft.Observe(7, 1480, true)
	ft.Observe(9, 0, false)
	ft.Observe(7, 2960, false)

	assert.Equal(t, 2, ft.Len())
	assert.Equal(t, []uint32{0, 1480, 2960}, ft.Offsets(7))
	assert.Equal(t, []uint32{1480}, ft.Offsets(3))
	assert.Nil(t, ft.Offsets(9))

	assert.Equal(t, []FragmentGroup{
		{ID: 3, Offsets: []uint32{1480}},
		{ID: 7, Offsets: []uint32{0, 1480, 2960}},
	}, ft.Groups())
}

func TestFragmentTracker_OffsetsIsACopy(t *testing.T) {
	ft := NewFragmentTracker()
	ft.Observe(1, 8, false)

	got := ft.Offsets(1)
	got[0] = 999

	assert.Equal(t, []uint32{8}, ft.Offsets(1))
}

func TestFragmentTracker_KeepsDuplicates(t *testing.T) {
	ft := NewFragmentTracker()

	ft.Observe(5, 16, true)
	ft.Observe(5, 16, true)

	assert.Equal(t, []uint32{16, 16}, ft.Offsets(5))
}
