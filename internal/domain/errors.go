package domain

import "errors"

var (
	// ErrInvalidParams signals out-of-range analysis parameters.
	ErrInvalidParams = errors.New("invalid parameters")
	// ErrEmptyCorpus signals that every record canonicalized to empty text.
	ErrEmptyCorpus = errors.New("no valid text content in risks")
	// ErrEmptyCSV signals a CSV with no usable rows.
	ErrEmptyCSV = errors.New("no valid risks found in CSV")
	// ErrMissingColumn signals a CSV without a required column.
	ErrMissingColumn = errors.New("missing required CSV column")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrAnalysisFailed signals a stage failure after its fallback was spent.
	ErrAnalysisFailed = errors.New("analysis failed")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
)
