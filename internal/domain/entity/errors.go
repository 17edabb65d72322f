package entity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrElementNotFound      = errors.New("element not found")
	ErrAmbiguousLocator     = errors.New("ambiguous locator")
	ErrActionabilityTimeout = errors.New("actionability timeout")
	ErrStaleElement         = errors.New("stale element")
	ErrFrameNotFound        = errors.New("frame not found")
	ErrAssertionTimeout     = errors.New("assertion timeout")
	ErrUnhandledDialog      = errors.New("unhandled dialog")
	ErrContextClosed        = errors.New("context closed")
	ErrNavigation           = errors.New("navigation failed")
	ErrInvalidParams        = errors.New("invalid action parameters")
)

// EngineError carries the kind of failure together with the last known state.
// errors.Is matches both the Kind sentinel and the wrapped cause.
type EngineError struct {
	Kind      error
	Op        string
	Selector  string
	FramePath string
	Count     int
	Property  ActionabilityProperty
	State     *ActionabilityState
	Detail    string
	Err       error
}

func (e *EngineError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Selector != "" {
		fmt.Fprintf(&b, " %s", e.Selector)
	}
	if e.FramePath != "" {
		fmt.Fprintf(&b, " (frame %s)", e.FramePath)
	}
	switch {
	case e.Property != "":
		fmt.Fprintf(&b, ": %s=false", e.Property)
	case errors.Is(e.Kind, ErrAmbiguousLocator):
		fmt.Fprintf(&b, ": %d matches", e.Count)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *EngineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewError(kind error, op string) *EngineError {
	return &EngineError{Kind: kind, Op: op}
}

// IsWarning reports whether err is a recoverable kind that callers may log and ignore.
func IsWarning(err error) bool {
	return errors.Is(err, ErrUnhandledDialog) || errors.Is(err, ErrAssertionTimeout)
}

// KindOf returns the taxonomy sentinel carried by err, or nil.
func KindOf(err error) error {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	for _, k := range []error{
		ErrElementNotFound, ErrAmbiguousLocator, ErrActionabilityTimeout, ErrStaleElement,
		ErrFrameNotFound, ErrAssertionTimeout, ErrUnhandledDialog, ErrContextClosed,
		ErrNavigation, ErrInvalidParams,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
