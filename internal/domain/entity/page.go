package entity

import (
	"fmt"
	"strings"
)

type ContextID string

type PageID string

type FrameID string

// NodeID identifies a DOM node for the lifetime of its document. Zero means "no node".
type NodeID int64

type LoadState string

const (
	LoadStateLoading     LoadState = "loading"
	LoadStateLoad        LoadState = "load"
	LoadStateNetworkIdle LoadState = "networkidle"
	LoadStateClosed      LoadState = "closed"
)

// Reached reports whether s is at least as far along as want.
func (s LoadState) Reached(want LoadState) bool {
	return loadStateRank(s) >= loadStateRank(want)
}

func loadStateRank(s LoadState) int {
	switch s {
	case LoadStateLoading:
		return 0
	case LoadStateLoad:
		return 1
	case LoadStateNetworkIdle:
		return 2
	default:
		return -1
	}
}

type PageInfo struct {
	URL       string
	Title     string
	LoadState LoadState
}

type FrameKind string

const (
	FrameKindDocument FrameKind = "document"
	FrameKindIFrame   FrameKind = "iframe"
	FrameKindShadow   FrameKind = "shadow"
)

// ScopeRef names a query scope: the main document, an iframe document or a shadow root.
// Host is nil for the main document of a page.
type ScopeRef struct {
	Page  PageID
	Frame FrameID
	Kind  FrameKind
	Host  *NodeRef
}

func (s ScopeRef) IsRoot() bool {
	return s.Host == nil
}

// Key is a stable string form usable as a map key.
func (s ScopeRef) Key() string {
	if s.Host == nil {
		return fmt.Sprintf("%s/%s", s.Page, s.Frame)
	}
	return fmt.Sprintf("%s>%s:%d/%s", s.Host.Scope.Key(), s.Kind, s.Host.ID, s.Frame)
}

type NodeRef struct {
	Scope ScopeRef
	ID    NodeID
}

func (n NodeRef) String() string {
	return fmt.Sprintf("%s#%d", n.Scope.Key(), n.ID)
}

// FrameInfo is one entry of the frame listing returned by a control channel.
// Shadow roots are listed as frames of kind FrameKindShadow whose Host is the shadow host.
type FrameInfo struct {
	ID     FrameID
	Parent FrameID
	Kind   FrameKind
	Name   string
	URL    string
	Host   NodeID
}

// FrameSelector is one segment of a frame path.
type FrameSelector struct {
	Selector string
	Shadow   bool
}

func (f FrameSelector) String() string {
	if f.Shadow {
		return "shadow(" + f.Selector + ")"
	}
	return "frame(" + f.Selector + ")"
}

func FramePathString(path []FrameSelector) string {
	if len(path) == 0 {
		return "main"
	}
	parts := make([]string, 0, len(path))
	for _, p := range path {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, " > ")
}

type Screenshot struct {
	Data   []byte
	Format string
	Width  int
	Height int
}
