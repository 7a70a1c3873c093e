package printrequest

import "time"

// SetNow replaces the clock of s.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}
