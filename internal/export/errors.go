package export

import (
	"fmt"

	"github.com/sulaimonao/selfhostedsearch/internal/metadata"
	"github.com/sulaimonao/selfhostedsearch/pkg/failure"
)

type ExportErrorCause string

const (
	ErrCauseConversionFailure ExportErrorCause = "markdown conversion failed"
	ErrCauseEmptyDocument     ExportErrorCause = "nothing to export"
	ErrCauseWriteFailure      ExportErrorCause = "write failed"
)

// ExportError is the classified error type every export operation returns,
// following the module-wide ClassifiedError convention.
type ExportError struct {
	Message   string
	Retryable bool
	Cause     ExportErrorCause
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error: %s", e.Cause)
}

func (e *ExportError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapExportErrorToMetadataCause is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapExportErrorToMetadataCause(err *ExportError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseConversionFailure:
		return metadata.CauseContentInvalid
	case ErrCauseEmptyDocument:
		return metadata.CauseContentInvalid
	case ErrCauseWriteFailure:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}
