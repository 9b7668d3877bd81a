package store

import "errors"

// ErrNotFound is returned by a store method when the requested row does not
// exist. Callers translate it into apierror.NotFound at the API boundary.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a uniqueness or
// state-machine constraint (e.g. claiming an already-claimed subtask).
var ErrConflict = errors.New("conflict")
