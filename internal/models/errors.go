package models

import "errors"

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyDocument       = errors.New("document contains no text")
	ErrModelUnavailable    = errors.New("embedding model unavailable")
	ErrStoreInitialization = errors.New("vector store initialization failed")
	ErrLengthMismatch      = errors.New("chunks and embeddings length mismatch")
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrNoCredential        = errors.New("no credential provided")
	ErrService             = errors.New("chat service error")
	ErrRateLimited         = errors.New("rate limited")
	ErrNoDocument          = errors.New("no document ingested")
)
