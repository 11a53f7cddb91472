package services

import "time"

// Clock hooks for tests that depend on schedule arithmetic.

func (s *LedgerService) SetClock(now func() time.Time)   { s.now = now }
func (s *TransferService) SetClock(now func() time.Time) { s.now = now }
func (s *CardService) SetClock(now func() time.Time)     { s.now = now }
func (s *CreditService) SetClock(now func() time.Time)   { s.now = now }
func (s *CycleService) SetClock(now func() time.Time)    { s.now = now }
