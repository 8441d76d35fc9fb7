package domain

import (
	"errors"
	"fmt"
)

// Error kinds of the processing taxonomy. A document-level kind never
// aborts sibling documents; ErrBatchBusy and configuration failures are
// the only batch-level ones.
var (
	ErrValidation     = errors.New("validation failed")
	ErrExtraction     = errors.New("extraction failed")
	ErrAIProcessing   = errors.New("ai processing failed")
	ErrClassification = errors.New("classification failed")
	ErrStageTimeout   = errors.New("stage timed out")
	ErrFormatting     = errors.New("formatting failed")
	ErrBatchBusy      = errors.New("batch already in progress")
	ErrReportNotFound = errors.New("report not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrTemporary      = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
