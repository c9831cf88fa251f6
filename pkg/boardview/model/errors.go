package model

import "errors"

// Fatal-for-file decoder errors. Callers move on to the next candidate file
// when they see one of these.
var (
	ErrMissingHeader     = errors.New("missing_bvraw3_header")
	ErrEmptyResult       = errors.New("bvraw3_empty_result")
	ErrNoNetsOrRefdes    = errors.New("no_nets_or_refdes_found")
	ErrNoStrings         = errors.New("no_strings_found")
	ErrInvalidOffsets    = errors.New("xzzpcb_invalid_offsets")
	ErrUnsupportedFormat = errors.New("unsupported_boardview_format")
)

// ErrMissingOrInvalidKey means the encrypted container could not even be
// attempted: no key source produced a parity-valid key, or the masked header
// did not verify. It reports a key failure, not a parse failure.
var ErrMissingOrInvalidKey = errors.New("xzzpcb_missing_or_invalid_key")
