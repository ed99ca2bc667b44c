package ingest

import "errors"

var (
	ErrMalformedRecord = errors.New("malformed order record")
	ErrRuleViolation   = errors.New("order rejected by rule")
)
