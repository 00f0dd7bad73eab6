package syncer

import "sync"

// Session is the explicit "current guest" pointer of one kiosk.  It is set
// when a guest identifies at the kiosk and cleared on logout or switch.
type Session struct {
	mu      sync.RWMutex
	guestID uint64
	set     bool
}

// Select makes guestID the current guest.
func (s *Session) Select(guestID uint64) {
	s.mu.Lock()
	s.guestID, s.set = guestID, true
	s.mu.Unlock()
}

// Current returns the selected guest, if any.
func (s *Session) Current() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.guestID, s.set
}

// Clear forgets the current guest.
func (s *Session) Clear() {
	s.mu.Lock()
	s.guestID, s.set = 0, false
	s.mu.Unlock()
}
