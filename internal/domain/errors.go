package domain

import "errors"

var (
	// ErrUnrecognizedType means no magic-byte signature matched the upload.
	ErrUnrecognizedType = errors.New("file type not recognized")
	// ErrUnsupportedType means the signature matched a type outside the allow-list.
	ErrUnsupportedType = errors.New("file type not supported")
	// ErrInvalidMedia means the media's dimensions could not be read.
	ErrInvalidMedia = errors.New("media dimensions unreadable")
	ErrNotFound     = errors.New("resource not found")
)
