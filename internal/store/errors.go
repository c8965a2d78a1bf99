package store

import "errors"

var (
	ErrNotFound          = errors.New("asset not found")
	ErrDuplicateSourceID = errors.New("source id already bound to another asset")
)
