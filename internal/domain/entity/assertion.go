package entity

import "time"

type AssertionResult struct {
	Satisfied    bool
	LastObserved any
	Elapsed      time.Duration
	Attempts     int
	LastErr      error
	Description  string
	Diagnostic   *Diagnostic
}

// Diagnostic is a snapshot captured when an expectation is not met.
type Diagnostic struct {
	Locator   string
	FramePath string
	PageURL   string
	HTML      string
	Image     *Screenshot
	Captured  time.Time
}
