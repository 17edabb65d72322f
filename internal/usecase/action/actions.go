package action

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"browser-harness/internal/application/port/output"
	"browser-harness/internal/application/service"
	"browser-harness/internal/domain/entity"
)

var (
	pointer  = []entity.ActionabilityProperty{entity.PropAttached, entity.PropVisible, entity.PropStable, entity.PropReceivesEvents, entity.PropEnabled}
	hover    = []entity.ActionabilityProperty{entity.PropAttached, entity.PropVisible, entity.PropStable, entity.PropReceivesEvents}
	editing  = []entity.ActionabilityProperty{entity.PropAttached, entity.PropVisible, entity.PropEnabled, entity.PropEditable}
	choosing = []entity.ActionabilityProperty{entity.PropAttached, entity.PropVisible, entity.PropEnabled}
	scroll   = []entity.ActionabilityProperty{entity.PropAttached, entity.PropVisible, entity.PropStable}
	attached = []entity.ActionabilityProperty{entity.PropAttached}
)

type definition struct {
	kind     entity.ActionKind
	required []entity.ActionabilityProperty
	validate func(entity.ActionParams) error
}

func (d definition) Kind() entity.ActionKind {
	return d.kind
}

func (d definition) Required() []entity.ActionabilityProperty {
	return d.required
}

func (d definition) Validate(p entity.ActionParams) error {
	if d.validate == nil {
		return nil
	}
	return d.validate(p)
}

func (d definition) Input(p entity.ActionParams) entity.InputEvent {
	ev := entity.InputEvent{Kind: d.kind, Text: p.Text, Key: p.Key, Values: p.Values, Target: p.Target}
	for _, f := range p.Files {
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		ev.Files = append(ev.Files, f)
	}
	return ev
}

// Definitions returns the built-in action kinds.
func Definitions() []output.ActionPort {
	return []output.ActionPort{
		definition{kind: entity.ActionClick, required: pointer},
		definition{kind: entity.ActionDblClick, required: pointer},
		definition{kind: entity.ActionHover, required: hover},
		definition{kind: entity.ActionFill, required: editing},
		definition{kind: entity.ActionType, required: editing, validate: needText},
		definition{kind: entity.ActionPress, required: attached, validate: needKey},
		definition{kind: entity.ActionCheck, required: pointer},
		definition{kind: entity.ActionUncheck, required: pointer},
		definition{kind: entity.ActionSelectOption, required: choosing, validate: needValues},
		definition{kind: entity.ActionSetFiles, required: attached, validate: needFiles},
		definition{kind: entity.ActionDragTo, required: hover, validate: needTarget},
		definition{kind: entity.ActionFocus, required: attached},
		definition{kind: entity.ActionScrollIntoView, required: scroll},
	}
}

func NewRegistry() *service.ActionRegistryImpl {
	r := service.NewActionRegistry()
	for _, d := range Definitions() {
		r.Register(d)
	}
	return r
}

func needText(p entity.ActionParams) error {
	if p.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

func needKey(p entity.ActionParams) error {
	if p.Key == "" {
		return errors.New("key is required")
	}
	return nil
}

func needValues(p entity.ActionParams) error {
	if len(p.Values) == 0 {
		return errors.New("at least one option value is required")
	}
	return nil
}

func needFiles(p entity.ActionParams) error {
	for _, f := range p.Files {
		info, err := os.Stat(f)
		if err != nil {
			return fmt.Errorf("file %s: %w", f, err)
		}
		if info.IsDir() {
			return fmt.Errorf("file %s is a directory", f)
		}
	}
	return nil
}

func needTarget(p entity.ActionParams) error {
	if p.Target == nil {
		return errors.New("drop target is required")
	}
	return nil
}
