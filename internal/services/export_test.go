package services

import "time"

// SetClock replaces the forecast service clock.
func SetClock(s *ForecastService, now func() time.Time) {
	s.now = now
}
