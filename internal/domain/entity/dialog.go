package entity

import "time"

type DialogKind string

const (
	DialogAlert        DialogKind = "alert"
	DialogConfirm      DialogKind = "confirm"
	DialogPrompt       DialogKind = "prompt"
	DialogBeforeUnload DialogKind = "beforeunload"
)

type DialogEvent struct {
	Kind         DialogKind
	Message      string
	DefaultValue string
	Page         PageID
}

type DialogResponse struct {
	Accept bool
	Text   string
}

type DialogHandler func(DialogEvent) DialogResponse

type DialogOutcome struct {
	Event    DialogEvent
	Response DialogResponse
	Handled  bool
	At       time.Time
}
