package services

import "time"

func (s *UserService) SetClock(now func() time.Time) { s.now = now }
