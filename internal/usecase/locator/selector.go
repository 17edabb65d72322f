package locator

import (
	"fmt"
	"regexp"
	"strings"

	"browser-harness/internal/domain/entity"
)

// Matches an engine name before "=".
var reEngine = regexp.MustCompile(`^[a-zA-Z_0-9-]+$`)

// Matches the start of an XPath expression, optionally inside parentheses.
var reXPath = regexp.MustCompile(`^\(*//`)

// Part is one segment of a chained selector ("css=form >> text=Login").
type Part struct {
	Engine entity.Strategy
	Body   string
}

// ParseSelector splits selector on ">>" outside quotes and detects each part's engine.
func ParseSelector(selector string) ([]Part, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, fmt.Errorf("%w: empty selector", entity.ErrInvalidParams)
	}
	var (
		parts []Part
		start int
		quote byte
	)
	for i := 0; i < len(selector); i++ {
		c := selector[i]
		switch {
		case c == '\\' && i+1 < len(selector):
			i++
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '"' || c == '\'' || c == '`'):
			quote = c
		case quote == 0 && c == '>' && i+1 < len(selector) && selector[i+1] == '>':
			p, err := parsePart(selector[start:i])
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
			i++
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("%w: unterminated quote in %q", entity.ErrInvalidParams, selector)
	}
	p, err := parsePart(selector[start:])
	if err != nil {
		return nil, err
	}
	return append(parts, p), nil
}

func parsePart(raw string) (Part, error) {
	part := strings.TrimSpace(raw)
	if part == "" {
		return Part{}, fmt.Errorf("%w: empty selector part", entity.ErrInvalidParams)
	}
	if eq := strings.Index(part, "="); eq > 0 && reEngine.MatchString(strings.TrimSpace(part[:eq])) {
		name := strings.ToLower(strings.TrimSpace(part[:eq]))
		body := strings.TrimSpace(part[eq+1:])
		engine, ok := engineNames[name]
		if !ok {
			return Part{}, fmt.Errorf("%w: unknown selector engine %q", entity.ErrInvalidParams, name)
		}
		return Part{Engine: engine, Body: body}, nil
	}
	if isQuoted(part) {
		return Part{Engine: entity.StrategyText, Body: part}, nil
	}
	if reXPath.MatchString(part) || strings.HasPrefix(part, "..") {
		return Part{Engine: entity.StrategyXPath, Body: part}, nil
	}
	return Part{Engine: entity.StrategyCSS, Body: part}, nil
}

var engineNames = map[string]entity.Strategy{
	"css":         entity.StrategyCSS,
	"xpath":       entity.StrategyXPath,
	"text":        entity.StrategyText,
	"role":        entity.StrategyRole,
	"label":       entity.StrategyLabel,
	"testid":      entity.StrategyTestID,
	"data-testid": entity.StrategyTestID,
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	q := s[0]
	return (q == '"' || q == '\'') && s[len(s)-1] == q
}

func unquote(s string) string {
	if isQuoted(s) {
		return strings.ReplaceAll(s[1:len(s)-1], `\`+string(s[0]), string(s[0]))
	}
	return s
}

// parts returns the chain a locator describes. Explicit strategies are a single part.
func parts(loc entity.Locator) ([]Part, error) {
	if loc.Strategy == entity.StrategyAuto {
		return ParseSelector(loc.Selector)
	}
	if strings.TrimSpace(loc.Selector) == "" {
		return nil, fmt.Errorf("%w: empty %s selector", entity.ErrInvalidParams, loc.Strategy)
	}
	return []Part{{Engine: loc.Strategy, Body: loc.Selector}}, nil
}
