package interact

import (
	"errors"
	"fmt"
)

var (
	// ErrClickIntercepted means another element covers the target's centre.
	ErrClickIntercepted = errors.New("click intercepted by another element")
	// ErrNotInteractable means the target has no clickable area.
	ErrNotInteractable = errors.New("element not interactable")
)

// InteractionError is returned when both the native click and the forced
// script click failed.
type InteractionError struct {
	Target string
	Native error
	Forced error
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("click on %s failed: native: %v; forced: %v", e.Target, e.Native, e.Forced)
}

func (e *InteractionError) Unwrap() []error {
	return []error{e.Native, e.Forced}
}
