package taxrag

import (
	"errors"

	"github.com/gkhurtsilava/taxrag/index"
)

var (
	// ErrIndexMissing is returned when an explicit load finds no dense
	// index or document artifact on disk.
	ErrIndexMissing = index.ErrIndexMissing

	// ErrEmbeddingFailed is returned when embedding generation fails.
	// Indexing cannot proceed without vectors, so this propagates.
	ErrEmbeddingFailed = index.ErrEmbeddingFailed

	// ErrCaseNotFound is returned when a case ID does not exist in the corpus.
	ErrCaseNotFound = errors.New("taxrag: case not found")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("taxrag: invalid configuration")
)
