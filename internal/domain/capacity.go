package domain

// Slots is the remaining-capacity accumulator for one event. A zero
// participant limit means no ceiling.
type Slots struct {
	limited bool
	free    int
}

// FreeSlots is the single authority for "is there room": it derives the
// remaining capacity from the participant limit and the confirmed count.
func FreeSlots(capacity, confirmed int) Slots {
	if capacity <= 0 {
		return Slots{}
	}
	return Slots{limited: true, free: capacity - confirmed}
}

// Limited reports whether the event has a participant limit.
func (s Slots) Limited() bool { return s.limited }

// Free returns the remaining slots; meaningless when unlimited.
func (s Slots) Free() int { return s.free }

// Available reports whether one more request can be confirmed.
func (s Slots) Available() bool { return !s.limited || s.free > 0 }

// Exhausted reports whether a limited event has no slots left.
func (s Slots) Exhausted() bool { return s.limited && s.free <= 0 }

// Take consumes one slot, returning false when none is left.
func (s *Slots) Take() bool {
	if !s.Available() {
		return false
	}
	if s.limited {
		s.free--
	}
	return true
}
