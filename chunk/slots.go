package chunk

// slotStack is the LIFO free list of atlas slot indices.
type slotStack struct {
	free []uint32
}

// newSlotStack returns a stack holding 0..n-1 with 0 on top.
func newSlotStack(n int) slotStack {
	s := slotStack{free: make([]uint32, n)}
	for i := range s.free {
		s.free[i] = uint32(n - 1 - i)
	}
	return s
}

func (s *slotStack) pop() (uint32, bool) {
	n := len(s.free)
	if n == 0 {
		return 0, false
	}
	v := s.free[n-1]
	s.free = s.free[:n-1]
	return v, true
}

func (s *slotStack) push(v uint32) {
	s.free = append(s.free, v)
}

func (s *slotStack) len() int { return len(s.free) }
