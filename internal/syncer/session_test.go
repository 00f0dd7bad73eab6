package syncer

import "testing"

func TestSession(t *testing.T) {
	var s Session
	if _, ok := s.Current(); ok {
		t.Fatal("new session should have no guest")
	}
	s.Select(4)
	if id, ok := s.Current(); !ok || id != 4 {
		t.Errorf("Current = %d,%v", id, ok)
	}
	s.Select(5)
	if id, _ := s.Current(); id != 5 {
		t.Errorf("switch: Current = %d", id)
	}
	s.Clear()
	if _, ok := s.Current(); ok {
		t.Error("Clear should forget the guest")
	}
}
