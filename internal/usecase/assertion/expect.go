package assertion

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"browser-harness/internal/domain/entity"
)

// PageSubject is what page expectations observe.
type PageSubject interface {
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
}

// ElementSubject reports the current matches of a locator without waiting.
type ElementSubject interface {
	Snapshot(ctx context.Context) ([]entity.NodeState, error)
	String() string
}

// Diagnosable subjects can capture a snapshot for failure reports.
type Diagnosable interface {
	Diagnose(ctx context.Context) *entity.Diagnostic
}

// Expectation is a named condition with its predicate. Build one with the helpers
// below and evaluate it with Engine.Check or Engine.Must.
type Expectation struct {
	subject  string
	matcher  string
	cond     Condition
	pred     Predicate
	negate   bool
	diagnose func(ctx context.Context) *entity.Diagnostic
}

// Not inverts the predicate. A subject with no matching element satisfies a negated
// expectation; other condition errors still count as unmet.
func (x Expectation) Not() Expectation {
	x.negate = !x.negate
	return x
}

func (x Expectation) String() string {
	if x.negate {
		return fmt.Sprintf("expect(%s).not.%s", x.subject, x.matcher)
	}
	return fmt.Sprintf("expect(%s).%s", x.subject, x.matcher)
}

// Condition and Predicate expose the parts for use with Engine.WaitFor.
func (x Expectation) Condition() Condition {
	if !x.negate {
		return x.cond
	}
	return func(ctx context.Context) (any, error) {
		v, err := x.cond(ctx)
		if errors.Is(err, entity.ErrElementNotFound) {
			return absent{}, nil
		}
		return v, err
	}
}

func (x Expectation) Predicate() Predicate {
	if x.negate {
		return func(v any) bool {
			if _, ok := v.(absent); ok {
				return true
			}
			return !x.pred(v)
		}
	}
	return x.pred
}

// absent is observed in place of a value when no element matches.
type absent struct{}

func (absent) String() string { return "no element" }

func pageExpectation(p PageSubject, matcher string, cond Condition, pred Predicate) Expectation {
	x := Expectation{subject: "page", matcher: matcher, cond: cond, pred: pred}
	if d, ok := p.(Diagnosable); ok {
		x.diagnose = d.Diagnose
	}
	return x
}

func TitleEquals(p PageSubject, want string) Expectation {
	return pageExpectation(p, fmt.Sprintf("toHaveTitle(%q)", want),
		func(ctx context.Context) (any, error) { return p.Title(ctx) },
		func(v any) bool { return v.(string) == want })
}

func TitleMatches(p PageSubject, re *regexp.Regexp) Expectation {
	return pageExpectation(p, fmt.Sprintf("toHaveTitle(%s)", regexpLiteral(re)),
		func(ctx context.Context) (any, error) { return p.Title(ctx) },
		func(v any) bool { return re.MatchString(v.(string)) })
}

func URLMatches(p PageSubject, re *regexp.Regexp) Expectation {
	return pageExpectation(p, fmt.Sprintf("toHaveURL(%s)", regexpLiteral(re)),
		func(ctx context.Context) (any, error) { return p.URL(ctx) },
		func(v any) bool { return re.MatchString(v.(string)) })
}

// regexpLiteral renders re as a /pattern/ literal with slashes escaped.
func regexpLiteral(re *regexp.Regexp) string {
	return "/" + strings.ReplaceAll(re.String(), "/", `\/`) + "/"
}

func elementExpectation(el ElementSubject, matcher string, cond Condition, pred Predicate) Expectation {
	x := Expectation{subject: el.String(), matcher: matcher, cond: cond, pred: pred}
	if d, ok := el.(Diagnosable); ok {
		x.diagnose = d.Diagnose
	}
	return x
}

// single observes the only match. Zero or several matches are condition errors.
func single(el ElementSubject, observe func(entity.NodeState) any) Condition {
	return func(ctx context.Context) (any, error) {
		states, err := el.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		switch len(states) {
		case 0:
			e := entity.NewError(entity.ErrElementNotFound, "expect")
			e.Selector = el.String()
			return nil, e
		case 1:
			return observe(states[0]), nil
		default:
			e := entity.NewError(entity.ErrAmbiguousLocator, "expect")
			e.Selector, e.Count = el.String(), len(states)
			return nil, e
		}
	}
}

// Visible holds when exactly one element matches and it is visible. No match counts as
// not visible, so Hidden passes for removed elements.
func Visible(el ElementSubject) Expectation {
	return elementExpectation(el, "toBeVisible()", visibility(el), func(v any) bool { return v.(bool) })
}

func Hidden(el ElementSubject) Expectation {
	return elementExpectation(el, "toBeHidden()", visibility(el), func(v any) bool { return !v.(bool) })
}

func visibility(el ElementSubject) Condition {
	return func(ctx context.Context) (any, error) {
		states, err := el.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		switch len(states) {
		case 0:
			return false, nil
		case 1:
			return states[0].Visible && !states[0].Box.Empty(), nil
		default:
			e := entity.NewError(entity.ErrAmbiguousLocator, "expect")
			e.Selector, e.Count = el.String(), len(states)
			return nil, e
		}
	}
}

func TextEquals(el ElementSubject, want string) Expectation {
	return elementExpectation(el, fmt.Sprintf("toHaveText(%q)", want),
		single(el, func(st entity.NodeState) any { return normalize(st.Text) }),
		func(v any) bool { return v.(string) == normalize(want) })
}

func TextContains(el ElementSubject, want string) Expectation {
	return elementExpectation(el, fmt.Sprintf("toContainText(%q)", want),
		single(el, func(st entity.NodeState) any { return normalize(st.Text) }),
		func(v any) bool { return strings.Contains(v.(string), normalize(want)) })
}

func Count(el ElementSubject, want int) Expectation {
	return elementExpectation(el, fmt.Sprintf("toHaveCount(%d)", want),
		func(ctx context.Context) (any, error) {
			states, err := el.Snapshot(ctx)
			return len(states), err
		},
		func(v any) bool { return v.(int) == want })
}

func AttributeEquals(el ElementSubject, name, want string) Expectation {
	return elementExpectation(el, fmt.Sprintf("toHaveAttribute(%q, %q)", name, want),
		single(el, func(st entity.NodeState) any {
			v, ok := st.Attr(name)
			if !ok {
				return nil
			}
			return v
		}),
		func(v any) bool { s, ok := v.(string); return ok && s == want })
}

func ValueEquals(el ElementSubject, want string) Expectation {
	return elementExpectation(el, fmt.Sprintf("toHaveValue(%q)", want),
		single(el, func(st entity.NodeState) any { return st.Value }),
		func(v any) bool { return v.(string) == want })
}

func Checked(el ElementSubject) Expectation {
	return elementExpectation(el, "toBeChecked()",
		single(el, func(st entity.NodeState) any { return st.Checked }),
		func(v any) bool { return v.(bool) })
}

func HasClass(el ElementSubject, class string) Expectation {
	return elementExpectation(el, fmt.Sprintf("toHaveClass(%q)", class),
		single(el, func(st entity.NodeState) any { v, _ := st.Attr("class"); return v }),
		func(v any) bool {
			for _, c := range strings.Fields(v.(string)) {
				if c == class {
					return true
				}
			}
			return false
		})
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
