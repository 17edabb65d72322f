package diagnostics

import (
	"strings"

	"golang.org/x/net/html"
)

type CleanConfig struct {
	TagsToRemove  []string
	AttrsToRemove []string
	MaxOutputSize int
	// KeepAttr overrides removal for attributes matched by the rules above.
	KeepAttr func(attr html.Attribute) bool
}

// DefaultCleanConfig keeps what locators match on (ids, classes, roles, labels, test ids)
// and drops scripts, styling and event handlers.
var DefaultCleanConfig = CleanConfig{
	TagsToRemove: []string{
		"script", "style", "noscript", "svg", "link", "meta",
	},
	AttrsToRemove: []string{
		"style", "srcset", "sizes", "loading", "decoding", "fetchpriority",
	},
	MaxOutputSize: 16_000,
}

// Clean strips noise from markup captured for a failure report. A full document is
// reduced to its body content; a fragment is cleaned as is.
func Clean(raw string, cfg *CleanConfig) string {
	if cfg == nil {
		cfg = &DefaultCleanConfig
	}
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return truncate(raw, cfg.MaxOutputSize)
	}
	body := findBody(doc)
	if body == nil {
		return truncate(raw, cfg.MaxOutputSize)
	}

	for c := body.FirstChild; c != nil; {
		next := c.NextSibling
		cleanNode(c, cfg)
		c = next
	}

	var sb strings.Builder
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&sb, c)
	}
	return truncate(strings.TrimSpace(sb.String()), cfg.MaxOutputSize)
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func cleanNode(n *html.Node, cfg *CleanConfig) {
	switch n.Type {
	case html.CommentNode:
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" && n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return
	case html.ElementNode:
	default:
		return
	}

	if isOneOf(n.Data, cfg.TagsToRemove...) {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return
	}
	n.Attr = filterAttributes(n.Attr, cfg)

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		cleanNode(c, cfg)
		c = next
	}
}

func filterAttributes(attrs []html.Attribute, cfg *CleanConfig) []html.Attribute {
	var kept []html.Attribute
	for _, attr := range attrs {
		if shouldRemoveAttr(attr, cfg) {
			continue
		}
		kept = append(kept, attr)
	}
	return kept
}

func shouldRemoveAttr(attr html.Attribute, cfg *CleanConfig) bool {
	if cfg.KeepAttr != nil && cfg.KeepAttr(attr) {
		return false
	}
	if isOneOf(attr.Key, cfg.AttrsToRemove...) {
		return true
	}
	return strings.HasPrefix(attr.Key, "on")
}

func truncate(s string, max int) string {
	if max > 0 && len(s) > max {
		return s[:max] + "\n<!-- truncated -->"
	}
	return s
}

func isOneOf(s string, candidates ...string) bool {
	for _, c := range candidates {
		if s == c {
			return true
		}
	}
	return false
}
