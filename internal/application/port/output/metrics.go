package output

import (
	"time"

	"browser-harness/internal/domain/entity"
)

// MetricsPort receives engine counters. A nil-safe no-op implementation is used when
// metrics are disabled.
type MetricsPort interface {
	ObserveResolve(card string, matches int, attempts int, err error)
	ObserveAction(kind entity.ActionKind, attempts, restarts int, elapsed time.Duration, err error)
	ObserveAssertion(satisfied bool, attempts int, elapsed time.Duration)
	ObserveDialog(kind entity.DialogKind, handled bool)
	ObservePages(open int)
}
