package memory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"browser-harness/internal/domain/entity"
)

// Event is passed to On handlers.
type Event struct {
	Kind  entity.ActionKind
	Input entity.InputEvent
	Page  *Page

	ctx       context.Context
	node      *html.Node
	target    *html.Node
	prevented bool
}

func (e *Event) Context() context.Context {
	return e.ctx
}

// PreventDefault suppresses link navigation and form submission after the handlers run.
func (e *Event) PreventDefault() {
	e.prevented = true
}

// Attr reads an attribute of the node the action was dispatched to.
func (e *Event) Attr(name string) string {
	e.Page.b.mu.Lock()
	defer e.Page.b.mu.Unlock()
	v, _ := attr(e.node, name)
	return v
}

func (e *Event) Alert(msg string) error {
	_, err := e.Page.b.raiseDialog(e.ctx, e.Page.id, entity.DialogEvent{Kind: entity.DialogAlert, Message: msg})
	return err
}

func (e *Event) Confirm(msg string) (bool, error) {
	r, err := e.Page.b.raiseDialog(e.ctx, e.Page.id, entity.DialogEvent{Kind: entity.DialogConfirm, Message: msg})
	return r.Accept, err
}

// Prompt returns the entered text and whether the prompt was accepted.
func (e *Event) Prompt(msg, def string) (string, bool, error) {
	r, err := e.Page.b.raiseDialog(e.ctx, e.Page.id, entity.DialogEvent{Kind: entity.DialogPrompt, Message: msg, DefaultValue: def})
	if err != nil || !r.Accept {
		return "", false, err
	}
	return r.Text, true, nil
}

func (b *Browser) Dispatch(ctx context.Context, ref entity.NodeRef, in entity.InputEvent) error {
	b.mu.Lock()
	p, err := b.livePage(ref.Scope.Page)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	n, ok := b.nodes[ref.ID]
	if !ok || !b.attachedLocked(p, n) {
		b.mu.Unlock()
		return fmt.Errorf("%w: node %d is detached", entity.ErrStaleElement, ref.ID)
	}
	var target *html.Node
	if in.Kind == entity.ActionDragTo {
		if in.Target == nil {
			b.mu.Unlock()
			return errors.New("memory: drag without target")
		}
		target, ok = b.nodes[in.Target.ID]
		if !ok || !b.attachedLocked(p, target) {
			b.mu.Unlock()
			return fmt.Errorf("%w: drag target %d is detached", entity.ErrStaleElement, in.Target.ID)
		}
	}
	if err := b.applyInputLocked(p, n, in); err != nil {
		b.mu.Unlock()
		return err
	}
	var handlers []func(*Event) error
	for _, bh := range b.behaviors {
		if bh.kind == in.Kind && bh.sel.Match(n) {
			handlers = append(handlers, bh.fn)
		}
	}
	b.mu.Unlock()

	ev := &Event{Kind: in.Kind, Input: in, Page: b.Page(p.id), ctx: ctx, node: n, target: target}
	for _, fn := range handlers {
		if err := fn(ev); err != nil {
			return err
		}
	}
	if ev.prevented {
		return nil
	}
	return b.defaultAction(ctx, p.id, n, in)
}

// applyInputLocked performs the state changes a browser makes before listeners run.
func (b *Browser) applyInputLocked(p *page, n *html.Node, in entity.InputEvent) error {
	switch in.Kind {
	case entity.ActionClick:
		if isCheckable(n) {
			b.setCheckedLocked(n, !hasAttr(n, "checked") || inputType(n) == "radio")
		}
	case entity.ActionFill, entity.ActionType:
		if !isEditable(n) {
			return fmt.Errorf("memory: <%s> is not editable", n.Data)
		}
		value := in.Text
		if in.Kind == entity.ActionType {
			value = valueOf(n) + in.Text
		}
		setValue(n, value)
	case entity.ActionCheck, entity.ActionUncheck:
		if !isCheckable(n) {
			return fmt.Errorf("memory: <%s> is not a checkbox or radio", n.Data)
		}
		b.setCheckedLocked(n, in.Kind == entity.ActionCheck)
	case entity.ActionSelectOption:
		return selectOptions(n, in.Values)
	case entity.ActionSetFiles:
		if !isElement(n, "input") || inputType(n) != "file" {
			return fmt.Errorf("memory: <%s> is not a file input", n.Data)
		}
		p.files[n] = append([]string(nil), in.Files...)
		if len(in.Files) > 0 {
			setAttr(n, "value", `C:\fakepath\`+filepath.Base(in.Files[0]))
		} else {
			removeAttr(n, "value")
		}
	}
	return nil
}

// defaultAction follows links and submits forms.
func (b *Browser) defaultAction(ctx context.Context, id entity.PageID, n *html.Node, in entity.InputEvent) error {
	b.mu.Lock()
	var href, targetAttr, action string
	switch {
	case in.Kind == entity.ActionClick && closest(n, "a") != nil:
		a := closest(n, "a")
		href, _ = attr(a, "href")
		targetAttr, _ = attr(a, "target")
	case in.Kind == entity.ActionClick && isSubmitter(n), in.Kind == entity.ActionPress && in.Key == "Enter" && isElement(n, "input"):
		if form := closest(n, "form"); form != nil {
			action, _ = attr(form, "action")
		}
	}
	b.mu.Unlock()

	switch {
	case href != "" && !strings.HasPrefix(href, "#") && !strings.HasPrefix(href, "javascript:"):
		if targetAttr == "_blank" {
			_, err := b.openPopup(id, href)
			return err
		}
		return b.Navigate(ctx, id, href)
	case action != "":
		return b.Navigate(ctx, id, action)
	}
	return nil
}

func hasAttr(n *html.Node, name string) bool {
	_, ok := attr(n, name)
	return ok
}

func inputType(n *html.Node) string {
	v, _ := attr(n, "type")
	return strings.ToLower(v)
}

func isCheckable(n *html.Node) bool {
	if !isElement(n, "input") {
		return false
	}
	t := inputType(n)
	return t == "checkbox" || t == "radio"
}

func isSubmitter(n *html.Node) bool {
	switch {
	case isElement(n, "button"):
		t := inputType(n)
		return t == "" || t == "submit"
	case isElement(n, "input"):
		return inputType(n) == "submit"
	}
	return false
}

func (b *Browser) setCheckedLocked(n *html.Node, on bool) {
	if !on {
		removeAttr(n, "checked")
		return
	}
	if inputType(n) == "radio" {
		name, _ := attr(n, "name")
		if form := scopeRootOf(n); form != nil && name != "" {
			for _, other := range findAll(form, func(x *html.Node) bool {
				v, _ := attr(x, "name")
				return isElement(x, "input") && inputType(x) == "radio" && v == name
			}) {
				removeAttr(other, "checked")
			}
		}
	}
	setAttr(n, "checked", "")
}

func setValue(n *html.Node, value string) {
	if v, ok := attr(n, "contenteditable"); ok && v != "false" {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
		return
	}
	setAttr(n, "value", value)
}

func selectOptions(n *html.Node, values []string) error {
	if !isElement(n, "select") {
		return fmt.Errorf("memory: <%s> is not a select", n.Data)
	}
	options := findAll(n, func(x *html.Node) bool { return isElement(x, "option") })
	var picked []*html.Node
	for _, want := range values {
		var match *html.Node
		for _, opt := range options {
			if optionValue(opt) == want || strings.TrimSpace(textContent(opt)) == want {
				match = opt
				break
			}
		}
		if match == nil {
			return fmt.Errorf("memory: no option %q", want)
		}
		picked = append(picked, match)
	}
	if len(picked) > 1 && !hasAttr(n, "multiple") {
		return errors.New("memory: select does not accept multiple values")
	}
	for _, opt := range options {
		removeAttr(opt, "selected")
	}
	for _, opt := range picked {
		setAttr(opt, "selected", "")
	}
	return nil
}

// TargetAttr reads an attribute of the drop target of a drag.
func (e *Event) TargetAttr(name string) string {
	if e.target == nil {
		return ""
	}
	e.Page.b.mu.Lock()
	defer e.Page.b.mu.Unlock()
	v, _ := attr(e.target, name)
	return v
}
