package index

import (
	"fmt"

	"github.com/sulaimonao/selfhostedsearch/internal/metadata"
	"github.com/sulaimonao/selfhostedsearch/pkg/failure"
)

type IndexErrorCause string

const (
	ErrCauseCommitFailure   IndexErrorCause = "commit failure"
	ErrCauseLedgerIOFailure IndexErrorCause = "ledger io failure"
	ErrCauseQueryFailure    IndexErrorCause = "query failure"
)

// IndexError is the classified error type every internal/index operation
// returns, mirroring internal/robots.RobotsError's shape.
type IndexError struct {
	Message   string
	Retryable bool
	Cause     IndexErrorCause
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index error: %s: %s", e.Cause, e.Message)
}

func (e *IndexError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapIndexErrorToMetadataCause is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapIndexErrorToMetadataCause(err *IndexError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseCommitFailure:
		return metadata.CauseIndexCommitFailure
	case ErrCauseLedgerIOFailure:
		return metadata.CauseStorageFailure
	case ErrCauseQueryFailure:
		return metadata.CauseUnknown
	default:
		return metadata.CauseUnknown
	}
}
