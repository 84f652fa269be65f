package core

import "errors"

var (
	// ErrEncoding is returned by SendJSON when the payload cannot be
	// serialized. Nothing is sent in that case.
	ErrEncoding = errors.New("payload is not JSON-serializable")
)
