package session

import (
	"errors"

	"github.com/chromedp/cdproto/runtime"
)

// ErrStaleElement is returned when an element handle is used after the
// document it came from was replaced, or after the node left the DOM.
var ErrStaleElement = errors.New("stale element reference")

// Element is a live handle to a DOM node in the session's page. Handles are
// only valid within the document generation that produced them.
type Element struct {
	ObjectID    runtime.RemoteObjectID
	Description string
	generation  uint64
}

// IsZero reports whether the handle was never resolved.
func (e Element) IsZero() bool { return e.ObjectID == "" }

// Generation returns the document generation the handle belongs to.
func (e Element) Generation() uint64 { return e.generation }

func (e Element) String() string {
	if e.Description == "" {
		return string(e.ObjectID)
	}
	return e.Description
}

// ElementState is a point-in-time snapshot of an element's interactability.
type ElementState struct {
	Connected bool    `json:"connected"`
	Displayed bool    `json:"displayed"`
	Enabled   bool    `json:"enabled"`
	InView    bool    `json:"inView"`
	Tag       string  `json:"tag"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// Center returns the viewport coordinates of the element's midpoint.
func (st ElementState) Center() (float64, float64) {
	return st.X + st.Width/2, st.Y + st.Height/2
}
