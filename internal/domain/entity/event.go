package entity

type EventKind string

const (
	EventDialog     EventKind = "dialog"
	EventNavigation EventKind = "navigation"
	EventLoad       EventKind = "load"
	EventNewPage    EventKind = "newpage"
	EventPageClosed EventKind = "pageclosed"
)

// BrowserEvent is emitted by a control channel subscription.
type BrowserEvent struct {
	Kind    EventKind
	Page    PageID
	Context ContextID
	Opener  PageID
	Frame   FrameID
	URL     string
	Load    LoadState
	Dialog  *DialogEvent
}
