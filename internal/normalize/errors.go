package normalize

import (
	"fmt"

	"github.com/sulaimonao/selfhostedsearch/internal/metadata"
	"github.com/sulaimonao/selfhostedsearch/pkg/failure"
)

type NormalizationErrorCause string

const (
	ErrCauseHTMLParseFailure = "html parse failure"
	ErrCauseEmptyDocument    = "empty document"
)

type NormalizationError struct {
	Message   string
	Retryable bool
	Cause     NormalizationErrorCause
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization error: %s", e.Cause)
}

func (e *NormalizationError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapNormalizationErrorToMetadataCause maps normalize-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapNormalizationErrorToMetadataCause(err NormalizationError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseHTMLParseFailure:
		return metadata.CauseContentInvalid
	case ErrCauseEmptyDocument:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
