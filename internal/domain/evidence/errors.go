package evidence

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document, section or comparison does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConfirmationRequired guards destructive recalculation.
	ErrConfirmationRequired = errors.New("recalculation requires explicit confirmation")
)

// ExtractionError means the source document could not be turned into sections:
// the file is missing, corrupted, or has no extractable text.
type ExtractionError struct {
	DocumentID uint
	Reason     string
	Err        error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not process evidence document %d: %s: %v", e.DocumentID, e.Reason, e.Err)
	}
	return fmt.Sprintf("could not process evidence document %d: %s", e.DocumentID, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// InvalidPairError rejects comparing an item with itself, or two sections of
// the same document.
type InvalidPairError struct {
	Kind   string // "document" | "section"
	First  uint
	Second uint
	Reason string
}

func (e *InvalidPairError) Error() string {
	return fmt.Sprintf("invalid %s pair (%d, %d): %s", e.Kind, e.First, e.Second, e.Reason)
}

// AnalysisServiceError wraps failures of the external analysis service. It is
// never fatal to a comparison: the local score is still stored.
type AnalysisServiceError struct {
	Op  string
	Err error
}

func (e *AnalysisServiceError) Error() string {
	return fmt.Sprintf("analysis service %s: %v", e.Op, e.Err)
}

func (e *AnalysisServiceError) Unwrap() error { return e.Err }

func IsExtractionError(err error) bool {
	var e *ExtractionError
	return errors.As(err, &e)
}

func IsInvalidPair(err error) bool {
	var e *InvalidPairError
	return errors.As(err, &e)
}

func IsAnalysisServiceError(err error) bool {
	var e *AnalysisServiceError
	return errors.As(err, &e)
}
