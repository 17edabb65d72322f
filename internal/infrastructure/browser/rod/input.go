package rod

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"browser-harness/internal/domain/entity"
)

var keys = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"Space":      input.Space,
	"Home":       input.Home,
	"End":        input.End,
	"PageUp":     input.PageUp,
	"PageDown":   input.PageDown,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
}

var modifiers = map[string]input.Key{
	"Shift":   input.ShiftLeft,
	"Control": input.ControlLeft,
	"Alt":     input.AltLeft,
	"Meta":    input.MetaLeft,
}

// element resolves a registry handle to a rod element without retrying.
func (c *Channel) element(p *rod.Page, node entity.NodeRef) (*rod.Element, error) {
	el, err := p.Sleeper(rod.NotFoundSleeper).ElementByJS(evalJS(jsNode, int64(node.ID)))
	if err != nil {
		var nf *rod.ElementNotFoundError
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("%w: node %d", entity.ErrStaleElement, node.ID)
		}
		return nil, err
	}
	return el, nil
}

func (c *Channel) Dispatch(ctx context.Context, node entity.NodeRef, ev entity.InputEvent) error {
	p, err := c.page(ctx, node.Scope.Page)
	if err != nil {
		return err
	}
	el, err := c.element(p, node)
	if err != nil {
		return err
	}
	c.logger.Debug("Dispatching", "action", ev.Kind, "node", node.ID)

	switch ev.Kind {
	case entity.ActionClick:
		return el.Click(proto.InputMouseButtonLeft, 1)
	case entity.ActionDblClick:
		return el.Click(proto.InputMouseButtonLeft, 2)
	case entity.ActionHover:
		return el.Hover()
	case entity.ActionFocus:
		return el.Focus()
	case entity.ActionScrollIntoView:
		return el.ScrollIntoView()
	case entity.ActionFill:
		return fill(p, el, ev.Text)
	case entity.ActionType:
		if err := el.Focus(); err != nil {
			return err
		}
		for _, r := range ev.Text {
			if err := p.InsertText(string(r)); err != nil {
				return err
			}
		}
		return nil
	case entity.ActionPress:
		if err := el.Focus(); err != nil {
			return err
		}
		return press(p, ev.Key)
	case entity.ActionCheck, entity.ActionUncheck:
		res, err := p.Evaluate(evalJS(jsChecked, int64(node.ID)))
		if err != nil {
			return err
		}
		if res.Value.Bool() == (ev.Kind == entity.ActionCheck) {
			return nil
		}
		return el.Click(proto.InputMouseButtonLeft, 1)
	case entity.ActionSelectOption:
		var res struct {
			Stale bool   `json:"stale"`
			Error string `json:"error"`
		}
		if err := c.eval(p, jsSelect, &res, int64(node.ID), ev.Values); err != nil {
			return err
		}
		switch {
		case res.Stale:
			return fmt.Errorf("%w: node %d", entity.ErrStaleElement, node.ID)
		case res.Error != "":
			return fmt.Errorf("%w: %s", entity.ErrInvalidParams, res.Error)
		}
		return nil
	case entity.ActionSetFiles:
		return el.SetFiles(ev.Files)
	case entity.ActionDragTo:
		if ev.Target == nil {
			return fmt.Errorf("%w: drag without target", entity.ErrInvalidParams)
		}
		dst, err := c.element(p, *ev.Target)
		if err != nil {
			return err
		}
		return drag(p, el, dst)
	}
	return fmt.Errorf("%w: unsupported action %q", entity.ErrInvalidParams, ev.Kind)
}

func fill(p *rod.Page, el *rod.Element, text string) error {
	if err := el.SelectAllText(); err != nil {
		return err
	}
	if text == "" {
		return p.Keyboard.Type(input.Backspace)
	}
	return el.Input(text)
}

// press types a key chord such as "Enter", "a" or "Control+A".
func press(p *rod.Page, chord string) error {
	parts := strings.Split(chord, "+")
	name := parts[len(parts)-1]
	var held []input.Key
	for _, m := range parts[:len(parts)-1] {
		k, ok := modifiers[m]
		if !ok {
			return fmt.Errorf("%w: unknown modifier %q", entity.ErrInvalidParams, m)
		}
		held = append(held, k)
	}

	key, ok := keys[name]
	if !ok {
		r := []rune(name)
		if len(r) != 1 {
			return fmt.Errorf("%w: unknown key %q", entity.ErrInvalidParams, name)
		}
		if r[0] > 0x7e || r[0] < 0x20 {
			return p.InsertText(name)
		}
		key = input.Key(r[0])
	}
	return p.KeyActions().Press(held...).Type(key).Do()
}

func drag(p *rod.Page, src, dst *rod.Element) error {
	from, err := src.WaitInteractable()
	if err != nil {
		return err
	}
	if err := p.Mouse.MoveTo(*from); err != nil {
		return err
	}
	if err := p.Mouse.Down(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	to, err := dst.WaitInteractable()
	if err != nil {
		return err
	}
	if err := p.Mouse.MoveLinear(*to, 8); err != nil {
		return err
	}
	return p.Mouse.Up(proto.InputMouseButtonLeft, 1)
}
