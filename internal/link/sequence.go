// internal/link/sequence.go
package link

// maxIndex is the largest sequence index; 0 is never sent
const maxIndex = 254

// sequence hands out read request indices 1..254, wrapping.
// Not safe for concurrent use; the manager holds readMu around it.
type sequence struct {
	last uint8
}

func (s *sequence) next() uint8 {
	s.last++
	if s.last == 0 || s.last > maxIndex {
		s.last = 1
	}
	return s.last
}
