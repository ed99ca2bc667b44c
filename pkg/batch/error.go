package batch

import "errors"

var (
	ErrStaleRoot     = errors.New("batch root does not match the live set")
	ErrProofInvalid  = errors.New("inclusion proof invalid")
	ErrInvalidOrder  = errors.New("invalid incoming order")
	ErrUnknownPolicy = errors.New("unknown reject policy")
)
