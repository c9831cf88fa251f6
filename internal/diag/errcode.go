package diag

import (
	"errors"
	"io/fs"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
)

// Code is a coarse error class stored in ingest reports and log events.
type Code string

const (
	CodeUnknown           Code = "unknown"
	CodeKeyMissing        Code = "key_missing"
	CodeUnsupportedFormat Code = "unsupported_format"
	CodeParseFailed       Code = "parse_failed"
	CodeIO                Code = "io"
)

// Classify maps err onto a Code using sentinel errors and error types only.
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	if errors.Is(err, model.ErrMissingOrInvalidKey) {
		return CodeKeyMissing
	}
	if errors.Is(err, model.ErrUnsupportedFormat) {
		return CodeUnsupportedFormat
	}
	for _, sentinel := range []error{
		model.ErrMissingHeader,
		model.ErrEmptyResult,
		model.ErrNoNetsOrRefdes,
		model.ErrNoStrings,
		model.ErrInvalidOffsets,
	} {
		if errors.Is(err, sentinel) {
			return CodeParseFailed
		}
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}

var reasons = []error{
	model.ErrMissingOrInvalidKey,
	model.ErrUnsupportedFormat,
	model.ErrMissingHeader,
	model.ErrEmptyResult,
	model.ErrNoNetsOrRefdes,
	model.ErrNoStrings,
	model.ErrInvalidOffsets,
}

// Reason returns the tag of the first decoder sentinel err wraps, or the
// full error text when it wraps none.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, sentinel := range reasons {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
