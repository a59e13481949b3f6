package pipeline

// recordingScheduler keeps every notification it accepts.
type recordingScheduler struct {
	notes  []Notification
	reject bool
}

func (s *recordingScheduler) Schedule(n Notification) bool {
	if s.reject {
		return false
	}
	s.notes = append(s.notes, n)
	return true
}

// countingScheduler accepts and discards.
type countingScheduler struct {
	count int
}

func (s *countingScheduler) Schedule(Notification) bool {
	s.count++
	return true
}
