package analysis

import "sort"

// FragmentObserver receives the fragmentation fields of every decoded
// record. Implementations decide what to keep.
type FragmentObserver interface {
	Observe(id uint16, offset uint32, moreFragments bool)
}

// FragmentGroup is the ordered list of offsets seen for one IPv4
// identification value.
type FragmentGroup struct {
	ID      uint16
	Offsets []uint32
}

// FragmentTracker groups fragment offsets by IPv4 identification for the
// lifetime of one run. Nothing reads it during classification yet; it is
// the hook for reassembly-gap rules. Not safe for concurrent use.
type FragmentTracker struct {
	groups map[uint16][]uint32
}

// NewFragmentTracker creates an empty tracker.
func NewFragmentTracker() *FragmentTracker {
	return &FragmentTracker{
		groups: make(map[uint16][]uint32),
	}
}

// Observe records offset under id when the record is a fragment, that is
// when moreFragments is set or offset is non-zero.
func (ft *FragmentTracker) Observe(id uint16, offset uint32, moreFragments bool) {
	if !moreFragments && offset == 0 {
		return
	}
	ft.groups[id] = append(ft.groups[id], offset)
}

// Offsets returns a copy of the offsets observed for id, in arrival order.
func (ft *FragmentTracker) Offsets(id uint16) []uint32 {
	offsets, ok := ft.groups[id]
	if !ok {
		return nil
	}
	out := make([]uint32, len(offsets))
	copy(out, offsets)
	return out
}

// Groups returns every group sorted by identification.
func (ft *FragmentTracker) Groups() []FragmentGroup {
	groups := make([]FragmentGroup, 0, len(ft.groups))
	for id := range ft.groups {
		groups = append(groups, FragmentGroup{ID: id, Offsets: ft.Offsets(id)})
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].ID < groups[j].ID
	})
	return groups
}

// Len returns the number of identification values with at least one fragment.
func (ft *FragmentTracker) Len() int {
	return len(ft.groups)
}
