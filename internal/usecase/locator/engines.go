package locator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"browser-harness/internal/domain/entity"
)

var roleSelectors = map[string]string{
	"button":     `button, input[type="button"], input[type="submit"], input[type="reset"], [role="button"]`,
	"link":       `a[href], [role="link"]`,
	"heading":    `h1, h2, h3, h4, h5, h6, [role="heading"]`,
	"textbox":    `input:not([type]), input[type="text"], input[type="email"], input[type="search"], input[type="tel"], input[type="url"], textarea, [role="textbox"]`,
	"checkbox":   `input[type="checkbox"], [role="checkbox"]`,
	"radio":      `input[type="radio"], [role="radio"]`,
	"combobox":   `select, [role="combobox"]`,
	"list":       `ul, ol, [role="list"]`,
	"listitem":   `li, [role="listitem"]`,
	"img":        `img, [role="img"]`,
	"table":      `table, [role="table"]`,
	"row":        `tr, [role="row"]`,
	"dialog":     `dialog, [role="dialog"]`,
	"navigation": `nav, [role="navigation"]`,
	"form":       `form, [role="form"]`,
}

// role=button[name="Log in"]
var reRole = regexp.MustCompile(`^([a-zA-Z]+)\s*(?:\[\s*name\s*=\s*("(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*')\s*\])?$`)

const textHiddenTags = "self::script or self::style or self::head or self::title or self::template"

// runPart executes one chain segment below root (zero for the scope root).
func (r *Resolver) runPart(ctx context.Context, scope entity.ScopeRef, p Part, root entity.NodeID, pierce bool) ([]entity.NodeRef, error) {
	switch p.Engine {
	case entity.StrategyCSS:
		return r.ch.QueryNodes(ctx, scope, entity.Query{Engine: entity.QueryCSS, Body: p.Body, Root: root, Pierce: pierce})

	case entity.StrategyXPath:
		return r.ch.QueryNodes(ctx, scope, entity.Query{Engine: entity.QueryXPath, Body: relativeXPath(p.Body, root), Root: root, Pierce: pierce})

	case entity.StrategyTestID:
		sel := fmt.Sprintf(`[data-testid=%s]`, cssString(unquote(p.Body)))
		return r.ch.QueryNodes(ctx, scope, entity.Query{Engine: entity.QueryCSS, Body: sel, Root: root, Pierce: pierce})

	case entity.StrategyText:
		text, exact := textBody(p.Body)
		refs, err := r.ch.QueryNodes(ctx, scope, entity.Query{
			Engine: entity.QueryXPath, Body: relativeXPath(textXPath(text, exact), root), Root: root, Pierce: pierce,
		})
		if err != nil {
			return nil, err
		}
		return r.filter(ctx, refs, func(st entity.NodeState) bool { return matchText(st.Text, text, exact) })

	case entity.StrategyRole:
		role, name, err := parseRole(p.Body)
		if err != nil {
			return nil, err
		}
		refs, err := r.ch.QueryNodes(ctx, scope, entity.Query{Engine: entity.QueryCSS, Body: roleSelector(role), Root: root, Pierce: pierce})
		if err != nil || name == "" {
			return refs, err
		}
		return r.filter(ctx, refs, func(st entity.NodeState) bool { return matchText(accessibleName(st), name, false) })

	case entity.StrategyLabel:
		return r.byLabel(ctx, scope, p.Body, root, pierce)
	}
	return nil, fmt.Errorf("%w: unsupported selector engine %q", entity.ErrInvalidParams, p.Engine)
}

// byLabel finds form controls by the text of their <label> or by aria-label.
func (r *Resolver) byLabel(ctx context.Context, scope entity.ScopeRef, body string, root entity.NodeID, pierce bool) ([]entity.NodeRef, error) {
	text, exact := textBody(body)
	labels, err := r.ch.QueryNodes(ctx, scope, entity.Query{Engine: entity.QueryCSS, Body: "label", Root: root, Pierce: pierce})
	if err != nil {
		return nil, err
	}

	var out []entity.NodeRef
	seen := make(map[entity.NodeID]bool)
	add := func(refs []entity.NodeRef) {
		for _, ref := range refs {
			if !seen[ref.ID] {
				seen[ref.ID] = true
				out = append(out, ref)
			}
		}
	}

	for _, label := range labels {
		st, err := r.ch.NodeState(ctx, label)
		if err != nil {
			return nil, err
		}
		if !st.Attached || !matchText(st.Text, text, exact) {
			continue
		}
		var q entity.Query
		if id, ok := st.Attr("for"); ok && id != "" {
			q = entity.Query{Engine: entity.QueryCSS, Body: fmt.Sprintf(`[id=%s]`, cssString(id)), Pierce: pierce}
		} else {
			q = entity.Query{Engine: entity.QueryCSS, Body: "input, textarea, select", Root: label.ID}
		}
		controls, err := r.ch.QueryNodes(ctx, scope, q)
		if err != nil {
			return nil, err
		}
		add(controls)
	}

	aria, err := r.ch.QueryNodes(ctx, scope, entity.Query{Engine: entity.QueryCSS, Body: "[aria-label]", Root: root, Pierce: pierce})
	if err != nil {
		return nil, err
	}
	aria, err = r.filter(ctx, aria, func(st entity.NodeState) bool {
		v, _ := st.Attr("aria-label")
		return matchText(v, text, exact)
	})
	if err != nil {
		return nil, err
	}
	add(aria)
	return out, nil
}

// filter keeps attached nodes whose state satisfies keep.
func (r *Resolver) filter(ctx context.Context, refs []entity.NodeRef, keep func(entity.NodeState) bool) ([]entity.NodeRef, error) {
	out := refs[:0:0]
	for _, ref := range refs {
		st, err := r.ch.NodeState(ctx, ref)
		if err != nil {
			return nil, err
		}
		if st.Attached && keep(st) {
			out = append(out, ref)
		}
	}
	return out, nil
}

func parseRole(body string) (role, name string, err error) {
	m := reRole.FindStringSubmatch(strings.TrimSpace(body))
	if m == nil {
		return "", "", fmt.Errorf("%w: bad role selector %q", entity.ErrInvalidParams, body)
	}
	return strings.ToLower(m[1]), unquote(m[2]), nil
}

func roleSelector(role string) string {
	if sel, ok := roleSelectors[role]; ok {
		return sel
	}
	return fmt.Sprintf(`[role=%s]`, cssString(role))
}

func accessibleName(st entity.NodeState) string {
	if v, ok := st.Attr("aria-label"); ok && v != "" {
		return v
	}
	switch st.Tag {
	case "input":
		if v, ok := st.Attr("value"); ok && v != "" {
			return v
		}
		if v, ok := st.Attr("placeholder"); ok {
			return v
		}
	case "img":
		if v, ok := st.Attr("alt"); ok {
			return v
		}
	}
	if t := normalize(st.Text); t != "" {
		return t
	}
	v, _ := st.Attr("title")
	return v
}

// textBody reports the text to match and whether the match is exact (quoted body).
func textBody(body string) (string, bool) {
	body = strings.TrimSpace(body)
	if isQuoted(body) {
		return unquote(body), true
	}
	return body, false
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// matchText is a case-insensitive substring match, or whitespace-normalized equality
// when exact.
func matchText(have, want string, exact bool) bool {
	if exact {
		return normalize(have) == normalize(want)
	}
	return strings.Contains(strings.ToLower(normalize(have)), strings.ToLower(normalize(want)))
}

func textXPath(text string, exact bool) string {
	if exact {
		return fmt.Sprintf(`//*[not(%s)][text()[normalize-space(.)=%s]]`, textHiddenTags, xpathLiteral(normalize(text)))
	}
	return fmt.Sprintf(
		`//*[not(%s)][text()[contains(translate(normalize-space(.), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), %s)]]`,
		textHiddenTags, xpathLiteral(strings.ToLower(normalize(text))),
	)
}

// relativeXPath anchors absolute expressions at the chain root.
func relativeXPath(expr string, root entity.NodeID) string {
	if root != 0 && strings.HasPrefix(expr, "/") {
		return "." + expr
	}
	return expr
}

func cssString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(quoted, `, "'", `) + ")"
}
