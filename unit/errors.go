package unit

import "errors"

var (
	ErrNotFound    = errors.New("unit: not found")
	ErrExists      = errors.New("unit: already exists")
	ErrBatchOpen   = errors.New("unit: batch already open")
	ErrNoBatch     = errors.New("unit: no open batch")
	ErrConflict    = errors.New("unit: head moved since load")
	ErrMountExists = errors.New("unit: mount path already in use")
	ErrInvalidPath = errors.New("unit: invalid path")
	ErrReadOnly    = errors.New("unit: read-only unit")
)
