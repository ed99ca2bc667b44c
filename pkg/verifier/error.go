package verifier

import "errors"

var (
	ErrStaleOrReplayedBatch        = errors.New("stale or replayed batch")
	ErrRootMismatch                = errors.New("root mismatch")
	ErrInconsistentConsumption     = errors.New("inconsistent consumption")
	ErrFillInconsistentWithUTXOSet = errors.New("fill inconsistent with utxo set")
	ErrAnchorMismatch              = errors.New("anchor mismatch")
)
