package entity

import "time"

type ActionKind string

const (
	ActionClick          ActionKind = "click"
	ActionDblClick       ActionKind = "dblclick"
	ActionHover          ActionKind = "hover"
	ActionFill           ActionKind = "fill"
	ActionType           ActionKind = "type"
	ActionPress          ActionKind = "press"
	ActionCheck          ActionKind = "check"
	ActionUncheck        ActionKind = "uncheck"
	ActionSelectOption   ActionKind = "select-option"
	ActionSetFiles       ActionKind = "set-files"
	ActionDragTo         ActionKind = "drag-to"
	ActionFocus          ActionKind = "focus"
	ActionScrollIntoView ActionKind = "scroll-into-view"
)

func (k ActionKind) String() string {
	return string(k)
}

// ActionParams carries per-action input. Only the fields relevant to the kind are read.
type ActionParams struct {
	Text    string
	Key     string
	Values  []string
	Files   []string
	Target  *NodeRef
	Force   bool
	Trial   bool
	Timeout time.Duration

	// OnDialog handles dialogs raised while the action is dispatched. Nil means
	// dialogs fall through to any outer registration, or get auto-dismissed.
	OnDialog DialogHandler
}

// InputEvent is the channel-level description of a dispatched action.
type InputEvent struct {
	Kind   ActionKind
	Text   string
	Key    string
	Values []string
	Files  []string
	Target *NodeRef
}

type ActionResult struct {
	Action   ActionKind
	Node     NodeRef
	Attempts int
	Restarts int
	Elapsed  time.Duration
	State    ActionabilityState
	Dialogs  []DialogOutcome
	Warnings []error
}

// DialogValue returns the response of the last dialog handled during the action.
func (r *ActionResult) DialogValue() (DialogResponse, bool) {
	if r == nil || len(r.Dialogs) == 0 {
		return DialogResponse{}, false
	}
	return r.Dialogs[len(r.Dialogs)-1].Response, true
}
