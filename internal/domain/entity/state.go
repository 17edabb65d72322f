package entity

type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// NodeState is the raw computed state of a node as reported by a control channel.
type NodeState struct {
	Attached       bool
	Visible        bool
	Enabled        bool
	Editable       bool
	Checked        bool
	ReceivesEvents bool
	// Moving is set when the driver saw the box change across rendered frames.
	Moving     bool
	Box        Rect
	Tag        string
	Text       string
	Value      string
	Attributes map[string]string
}

func (s NodeState) Attr(name string) (string, bool) {
	v, ok := s.Attributes[name]
	return v, ok
}

type ActionabilityProperty string

const (
	PropAttached       ActionabilityProperty = "attached"
	PropVisible        ActionabilityProperty = "visible"
	PropStable         ActionabilityProperty = "stable"
	PropReceivesEvents ActionabilityProperty = "receives-events"
	PropEnabled        ActionabilityProperty = "enabled"
	PropEditable       ActionabilityProperty = "editable"
)

// ActionabilityOrder is the order in which properties are checked and reported.
var ActionabilityOrder = []ActionabilityProperty{
	PropAttached,
	PropVisible,
	PropStable,
	PropReceivesEvents,
	PropEnabled,
	PropEditable,
}

type ActionabilityState struct {
	Attached       bool
	Visible        bool
	Stable         bool
	ReceivesEvents bool
	Enabled        bool
	Editable       bool
}

func (s ActionabilityState) Has(p ActionabilityProperty) bool {
	switch p {
	case PropAttached:
		return s.Attached
	case PropVisible:
		return s.Visible
	case PropStable:
		return s.Stable
	case PropReceivesEvents:
		return s.ReceivesEvents
	case PropEnabled:
		return s.Enabled
	case PropEditable:
		return s.Editable
	}
	return false
}

// FirstUnsatisfied returns the first required property that does not hold.
func (s ActionabilityState) FirstUnsatisfied(required []ActionabilityProperty) (ActionabilityProperty, bool) {
	for _, p := range ActionabilityOrder {
		if !containsProp(required, p) {
			continue
		}
		if !s.Has(p) {
			return p, true
		}
	}
	return "", false
}

func containsProp(props []ActionabilityProperty, p ActionabilityProperty) bool {
	for _, x := range props {
		if x == p {
			return true
		}
	}
	return false
}
