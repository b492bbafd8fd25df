package services

import "errors"

var (
	// ErrEmptySource indicates a source object without any content.
	ErrEmptySource = errors.New("source object is empty")

	// ErrUnsupportedFormat indicates a source type no renderer handles.
	ErrUnsupportedFormat = errors.New("unsupported source format")

	// ErrMissingField indicates a payload field an earlier stage should have written.
	ErrMissingField = errors.New("payload field missing")
)
