// Package locator resolves locator expressions to live element handles. Every attempt
// re-queries the DOM; nothing is cached between attempts.
package locator

import (
	"context"
	"errors"
	"strings"
	"time"

	"browser-harness/internal/application/port/output"
	"browser-harness/internal/domain/entity"
	"browser-harness/internal/usecase/frametree"
	"browser-harness/internal/usecase/poll"
)

type Cardinality int

const (
	// Single requires exactly one match.
	Single Cardinality = iota
	// All accepts any non-empty set.
	All
)

func (c Cardinality) String() string {
	if c == All {
		return "all"
	}
	return "single"
}

type Resolver struct {
	ch       output.ControlChannel
	logger   output.LoggerPort
	metrics  output.MetricsPort
	interval time.Duration
}

func NewResolver(
	ch output.ControlChannel,
	logger output.LoggerPort,
	metrics output.MetricsPort,
	interval time.Duration,
) *Resolver {
	return &Resolver{
		ch:       ch,
		logger:   logger.Named("locator"),
		metrics:  metrics,
		interval: entity.Or(interval, entity.DefaultPollInterval),
	}
}

// Resolve polls until the locator matches per card or timeout elapses.
//
// Single fails with ElementNotFound when nothing matched at the deadline and with
// AmbiguousLocator when more than one element matched. All returns the first
// non-empty set, or an empty set without error at the deadline.
func (r *Resolver) Resolve(
	ctx context.Context,
	scope *frametree.Node,
	loc entity.Locator,
	card Cardinality,
	timeout time.Duration,
) ([]*Handle, error) {
	chain, err := parts(loc)
	if err != nil {
		return nil, err
	}

	var (
		last    []entity.NodeRef
		frame   *frametree.Node
		noFrame bool
		lastErr error
	)
	out, err := poll.Until(ctx, poll.Options{Timeout: timeout, Interval: r.interval}, func(ctx context.Context) (bool, error) {
		node, err := scope.Tree().Lookup(ctx, scope.Path())
		if err != nil {
			return false, err
		}
		if node == nil {
			noFrame, last = true, nil
			return false, nil
		}
		noFrame = false

		refs, err := r.match(ctx, node.Scope(), loc, chain)
		if err != nil {
			if errors.Is(err, entity.ErrStaleElement) {
				lastErr = err
				scope.Tree().Invalidate()
				return false, nil
			}
			return false, err
		}
		frame, last = node, refs
		if card == Single {
			return len(refs) == 1, nil
		}
		return len(refs) > 0, nil
	})
	r.metrics.ObserveResolve(card.String(), len(last), out.Attempts, err)

	if err != nil {
		if !errors.Is(err, poll.ErrTimeout) {
			return nil, err
		}
		return r.timeoutResult(scope, loc, card, last, frame, noFrame, lastErr, out)
	}

	r.logger.Debug("Resolved locator", "locator", loc.String(), "matches", len(last), "attempts", out.Attempts)
	now := time.Now()
	handles := make([]*Handle, 0, len(last))
	for _, ref := range last {
		handles = append(handles, &Handle{r: r, ref: ref, frame: frame, loc: loc, resolvedAt: now})
	}
	return handles, nil
}

func (r *Resolver) timeoutResult(
	scope *frametree.Node,
	loc entity.Locator,
	card Cardinality,
	last []entity.NodeRef,
	frame *frametree.Node,
	noFrame bool,
	lastErr error,
	out poll.Outcome,
) ([]*Handle, error) {
	path := scope.PathString()
	switch {
	case noFrame:
		e := entity.NewError(entity.ErrFrameNotFound, "resolve")
		e.Selector, e.FramePath = loc.String(), path
		return nil, e
	case card == All:
		r.logger.Debug("Locator matched nothing", "locator", loc.String(), "attempts", out.Attempts)
		return []*Handle{}, nil
	case len(last) > 1:
		e := entity.NewError(entity.ErrAmbiguousLocator, "resolve")
		e.Selector, e.FramePath, e.Count = loc.String(), path, len(last)
		return nil, e
	default:
		e := entity.NewError(entity.ErrElementNotFound, "resolve")
		e.Selector, e.FramePath, e.Err = loc.String(), path, lastErr
		e.Detail = "waited " + out.Elapsed.Round(time.Millisecond).String()
		return nil, e
	}
}

// Peek returns the current matches without waiting. An unresolved frame path or a
// stale scope yields no matches.
func (r *Resolver) Peek(ctx context.Context, scope *frametree.Node, loc entity.Locator) ([]*Handle, error) {
	chain, err := parts(loc)
	if err != nil {
		return nil, err
	}
	node, err := scope.Tree().Lookup(ctx, scope.Path())
	if err != nil || node == nil {
		return nil, err
	}
	refs, err := r.match(ctx, node.Scope(), loc, chain)
	if errors.Is(err, entity.ErrStaleElement) {
		scope.Tree().Invalidate()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	now := time.Now()
	handles := make([]*Handle, 0, len(refs))
	for _, ref := range refs {
		handles = append(handles, &Handle{r: r, ref: ref, frame: node, loc: loc, resolvedAt: now})
	}
	return handles, nil
}

// Count reports the current number of matches without waiting.
func (r *Resolver) Count(ctx context.Context, scope *frametree.Node, loc entity.Locator) (int, error) {
	hs, err := r.Peek(ctx, scope, loc)
	return len(hs), err
}

// match runs the chain and the locator filters once.
func (r *Resolver) match(ctx context.Context, scope entity.ScopeRef, loc entity.Locator, chain []Part) ([]entity.NodeRef, error) {
	roots := []entity.NodeID{0}
	var refs []entity.NodeRef
	for _, p := range chain {
		refs = refs[:0:0]
		seen := make(map[entity.NodeID]bool)
		for _, root := range roots {
			found, err := r.runPart(ctx, scope, p, root, loc.Pierce)
			if err != nil {
				return nil, err
			}
			for _, ref := range found {
				if !seen[ref.ID] {
					seen[ref.ID] = true
					refs = append(refs, ref)
				}
			}
		}
		roots = roots[:0]
		for _, ref := range refs {
			roots = append(roots, ref.ID)
		}
		if len(roots) == 0 {
			return nil, nil
		}
	}

	var err error
	if loc.HasText != "" && loc.Strategy != entity.StrategyRole {
		refs, err = r.filter(ctx, refs, func(st entity.NodeState) bool { return matchText(st.Text, loc.HasText, loc.Exact) })
	}
	if err == nil && loc.HasText != "" && loc.Strategy == entity.StrategyRole {
		refs, err = r.filter(ctx, refs, func(st entity.NodeState) bool { return matchText(accessibleName(st), loc.HasText, loc.Exact) })
	}
	if err == nil && loc.Attr != nil {
		refs, err = r.filter(ctx, refs, func(st entity.NodeState) bool {
			v, ok := st.Attr(loc.Attr.Name)
			return ok && v == loc.Attr.Value
		})
	}
	if err != nil {
		return nil, err
	}
	return nth(refs, loc.Nth), nil
}

func nth(refs []entity.NodeRef, n *int) []entity.NodeRef {
	if n == nil {
		return refs
	}
	i := *n
	if i < 0 {
		i += len(refs)
	}
	if i < 0 || i >= len(refs) {
		return nil
	}
	return refs[i : i+1]
}

// Describe renders a locator with its frame path for messages.
func Describe(scope *frametree.Node, loc entity.Locator) string {
	if len(scope.Path()) == 0 {
		return loc.String()
	}
	return strings.Join([]string{scope.PathString(), loc.String()}, " >> ")
}
