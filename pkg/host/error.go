package host

import "errors"

var (
	// ErrRootDiverged means the stored live set no longer hashes to the root
	// the settlement side accepted last.
	ErrRootDiverged = errors.New("stored live set diverged from oracle root")
	ErrNoStore      = errors.New("host needs a store")
)
