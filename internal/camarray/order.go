package camarray

import "sort"

// CameraOrder maps a logical output channel to a physical camera index.
// Channels are assigned by ascending serial number, so the same set of
// cameras always yields the same channels whatever order the bus
// enumerates them in.
type CameraOrder []int

// NewCameraOrder builds the channel order for cameras with the given serials,
// indexed by physical position.
func NewCameraOrder(serials []uint32) CameraOrder {
	order := make(CameraOrder, len(serials))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return serials[order[a]] < serials[order[b]]
	})
	return order
}

// Physical returns the physical index serving channel.
func (o CameraOrder) Physical(channel int) (int, bool) {
	if channel < 0 || channel >= len(o) {
		return 0, false
	}
	return o[channel], true
}

// Channel returns the logical channel of a physical index.
func (o CameraOrder) Channel(physical int) (int, bool) {
	for ch, p := range o {
		if p == physical {
			return ch, true
		}
	}
	return 0, false
}
