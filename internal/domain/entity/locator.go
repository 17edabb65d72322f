package entity

import (
	"fmt"
	"strings"
)

type Strategy string

const (
	StrategyAuto   Strategy = ""
	StrategyCSS    Strategy = "css"
	StrategyXPath  Strategy = "xpath"
	StrategyText   Strategy = "text"
	StrategyRole   Strategy = "role"
	StrategyLabel  Strategy = "label"
	StrategyTestID Strategy = "testid"
)

type AttrFilter struct {
	Name  string
	Value string
}

// Locator is an immutable description of how to find elements. It is resolved
// afresh every time it is used.
type Locator struct {
	Selector string
	Strategy Strategy
	HasText  string
	Exact    bool
	Attr     *AttrFilter
	Nth      *int
	Pierce   bool
}

func CSS(selector string) Locator {
	return Locator{Selector: selector, Strategy: StrategyCSS}
}

func XPath(expr string) Locator {
	return Locator{Selector: expr, Strategy: StrategyXPath}
}

func Text(text string) Locator {
	return Locator{Selector: text, Strategy: StrategyText}
}

func Role(role, name string) Locator {
	return Locator{Selector: role, Strategy: StrategyRole, HasText: name}
}

func Label(text string) Locator {
	return Locator{Selector: text, Strategy: StrategyLabel}
}

func TestID(id string) Locator {
	return Locator{Selector: id, Strategy: StrategyTestID}
}

// Selector parses an engine-prefixed selector string ("css=...", "text=...", "//...").
func Selector(s string) Locator {
	return Locator{Selector: s, Strategy: StrategyAuto}
}

func (l Locator) WithText(text string) Locator {
	l.HasText = text
	return l
}

func (l Locator) WithExactText(text string) Locator {
	l.HasText = text
	l.Exact = true
	return l
}

func (l Locator) WithAttr(name, value string) Locator {
	l.Attr = &AttrFilter{Name: name, Value: value}
	return l
}

func (l Locator) WithNth(n int) Locator {
	l.Nth = &n
	return l
}

func (l Locator) First() Locator {
	return l.WithNth(0)
}

func (l Locator) Last() Locator {
	return l.WithNth(-1)
}

func (l Locator) Piercing() Locator {
	l.Pierce = true
	return l
}

func (l Locator) String() string {
	var b strings.Builder
	if l.Strategy != StrategyAuto {
		b.WriteString(string(l.Strategy))
		b.WriteByte('=')
	}
	b.WriteString(l.Selector)
	if l.HasText != "" {
		if l.Exact {
			fmt.Fprintf(&b, " [text=%q]", l.HasText)
		} else {
			fmt.Fprintf(&b, " [has-text=%q]", l.HasText)
		}
	}
	if l.Attr != nil {
		fmt.Fprintf(&b, " [%s=%q]", l.Attr.Name, l.Attr.Value)
	}
	if l.Nth != nil {
		fmt.Fprintf(&b, " [nth=%d]", *l.Nth)
	}
	if l.Pierce {
		b.WriteString(" [pierce]")
	}
	return b.String()
}

type QueryEngine string

const (
	QueryCSS   QueryEngine = "css"
	QueryXPath QueryEngine = "xpath"
)

// Query is what a control channel executes natively. Root scopes the query to the
// subtree of a node; zero means the scope root.
type Query struct {
	Engine QueryEngine
	Body   string
	Root   NodeID
	Pierce bool
}
