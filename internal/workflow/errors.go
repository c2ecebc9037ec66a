// Package workflow implements the variable extraction pipeline as a state
// graph (load → tokens → classify? → finalize). Pattern extraction always
// runs; entity classification is conditional on tokens being present and
// degrades without failing the pipeline.
package workflow

import "errors"

// Sentinel errors for pipeline stages.
var (
	ErrLoadFailed     = errors.New("failed to load document")
	ErrExtractFailed  = errors.New("token extraction failed")
	ErrFinalizeFailed = errors.New("failed to finalize variable set")
)
