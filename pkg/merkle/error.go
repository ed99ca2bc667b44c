package merkle

import "errors"

var (
	ErrNotFound           = errors.New("id not found in set")
	ErrInvalidRemoval     = errors.New("removal of an id that is not live")
	ErrDuplicateInsertion = errors.New("insertion of an id that already exists")
)
