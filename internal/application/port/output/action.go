package output

import "browser-harness/internal/domain/entity"

// ActionPort describes one action kind: what it needs from the element and how it
// is sent over the control channel.
type ActionPort interface {
	Kind() entity.ActionKind
	Required() []entity.ActionabilityProperty
	Validate(params entity.ActionParams) error
	Input(params entity.ActionParams) entity.InputEvent
}

type ActionRegistry interface {
	Register(action ActionPort)
	Get(kind entity.ActionKind) (ActionPort, bool)
	All() []ActionPort
	Kinds() []entity.ActionKind
}
