package memory

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"browser-harness/internal/domain/entity"
)

func isElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

func attr(n *html.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != name {
			out = append(out, a)
		}
	}
	n.Attr = out
}

// isShadowTemplate reports whether n holds a declarative shadow root.
func isShadowTemplate(n *html.Node) bool {
	if !isElement(n, "template") {
		return false
	}
	_, ok := attr(n, "shadowrootmode")
	return ok
}

func shadowTemplateOf(host *html.Node) *html.Node {
	for c := host.FirstChild; c != nil; c = c.NextSibling {
		if isShadowTemplate(c) {
			return c
		}
	}
	return nil
}

// scopeRootOf returns the nearest enclosing shadow template or the document node.
func scopeRootOf(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if isShadowTemplate(p) || p.Type == html.DocumentNode {
			return p
		}
	}
	return nil
}

func documentOf(n *html.Node) *html.Node {
	cur := n
	for cur.Parent != nil {
		cur = cur.Parent
	}
	if cur.Type != html.DocumentNode {
		return nil
	}
	return cur
}

func isDescendant(n, root *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

// queryAll runs q under root and keeps matches that belong to scopeRoot (or to shadow
// roots nested in it when q.Pierce is set).
func queryAll(root, scopeRoot *html.Node, q entity.Query) ([]*html.Node, error) {
	var found []*html.Node
	switch q.Engine {
	case entity.QueryCSS, "":
		sel, err := cascadia.Compile(q.Body)
		if err != nil {
			return nil, fmt.Errorf("invalid css selector %q: %w", q.Body, err)
		}
		found = sel.MatchAll(root)
	case entity.QueryXPath:
		nodes, err := htmlquery.QueryAll(root, q.Body)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %q: %w", q.Body, err)
		}
		found = nodes
	default:
		return nil, fmt.Errorf("unsupported query engine %q", q.Engine)
	}

	out := make([]*html.Node, 0, len(found))
	for _, n := range found {
		if n == root || n.Type != html.ElementNode || isShadowTemplate(n) {
			continue
		}
		if !isDescendant(n, root) {
			continue
		}
		sr := scopeRootOf(n)
		if sr == scopeRoot || (q.Pierce && isDescendant(sr, scopeRoot)) {
			out = append(out, n)
		}
	}
	return out, nil
}

var invisibleTags = map[string]bool{
	"head": true, "script": true, "style": true, "title": true, "meta": true,
	"link": true, "template": true, "noscript": true,
}

func styleHas(n *html.Node, decl ...string) bool {
	style, ok := attr(n, "style")
	if !ok {
		return false
	}
	compact := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	for _, d := range decl {
		if strings.Contains(compact, d) {
			return true
		}
	}
	return false
}

// parentCrossingShadow steps from a shadow template to its host.
func parentCrossingShadow(n *html.Node) *html.Node {
	p := n.Parent
	if p != nil && isShadowTemplate(p) {
		return p.Parent
	}
	return p
}

func isVisible(n *html.Node) bool {
	if invisibleTags[n.Data] {
		return false
	}
	if v, _ := attr(n, "type"); isElement(n, "input") && v == "hidden" {
		return false
	}
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = parentCrossingShadow(cur) {
		if _, hidden := attr(cur, "hidden"); hidden {
			return false
		}
		if styleHas(cur, "display:none", "visibility:hidden") {
			return false
		}
		if isElement(cur, "head") {
			return false
		}
	}
	return true
}

func isEnabled(n *html.Node) bool {
	if _, ok := attr(n, "disabled"); ok {
		return false
	}
	if v, _ := attr(n, "aria-disabled"); v == "true" {
		return false
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if isElement(p, "fieldset") {
			if _, ok := attr(p, "disabled"); ok {
				return false
			}
		}
	}
	return true
}

func isEditable(n *html.Node) bool {
	if !isEnabled(n) {
		return false
	}
	if _, ok := attr(n, "readonly"); ok {
		return false
	}
	switch n.Data {
	case "input", "textarea", "select":
		return true
	}
	v, ok := attr(n, "contenteditable")
	return ok && v != "false"
}

func receivesEvents(n *html.Node) bool {
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = parentCrossingShadow(cur) {
		if _, ok := attr(cur, "data-obscured"); ok {
			return false
		}
		if styleHas(cur, "pointer-events:none") {
			return false
		}
	}
	return true
}

// textContent mirrors Node.textContent: template content and script/style are skipped.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch {
		case c.Type == html.TextNode:
			b.WriteString(c.Data)
			return
		case c.Type == html.ElementNode && (c.Data == "template" || c.Data == "script" || c.Data == "style"):
			return
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return b.String()
}

func valueOf(n *html.Node) string {
	switch n.Data {
	case "select":
		var first string
		var sel string
		var walk func(*html.Node)
		walk = func(c *html.Node) {
			for k := c.FirstChild; k != nil; k = k.NextSibling {
				if isElement(k, "option") {
					v := optionValue(k)
					if first == "" {
						first = v
					}
					if _, ok := attr(k, "selected"); ok && sel == "" {
						sel = v
					}
				}
				walk(k)
			}
		}
		walk(n)
		if sel != "" {
			return sel
		}
		return first
	case "textarea":
		if v, ok := attr(n, "value"); ok {
			return v
		}
		return textContent(n)
	}
	v, _ := attr(n, "value")
	return v
}

func optionValue(opt *html.Node) string {
	if v, ok := attr(opt, "value"); ok {
		return v
	}
	return strings.TrimSpace(textContent(opt))
}

func attributes(n *html.Node) map[string]string {
	out := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		out[a.Key] = a.Val
	}
	return out
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if match(c) {
			out = append(out, c)
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(root)
	return out
}

func findTitle(doc *html.Node) string {
	titles := findAll(doc, func(n *html.Node) bool {
		return isElement(n, "title") && scopeRootOf(n) == doc
	})
	if len(titles) == 0 {
		return ""
	}
	return strings.TrimSpace(textContent(titles[0]))
}

func closest(n *html.Node, tag string) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if isElement(p, tag) {
			return p
		}
	}
	return nil
}
