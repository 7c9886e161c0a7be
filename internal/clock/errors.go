package clock

import "errors"

// ErrListenerNotFound is returned by RemoveListener when the listener was
// never registered or has already been removed.
//
// This indicates a lifecycle bug in the caller and is never swallowed.
var ErrListenerNotFound = errors.New("clock: listener not registered")
