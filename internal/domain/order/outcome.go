package order

// OutcomeStatus is the result of importing one remote order
type OutcomeStatus string

const (
	OutcomeImported OutcomeStatus = "imported"
	OutcomeSkipped  OutcomeStatus = "skipped"
	OutcomeFailed   OutcomeStatus = "failed"
)

// SkipReason explains why a remote order was not imported
type SkipReason string

const (
	SkipAlreadyImported    SkipReason = "already_imported"
	SkipAlreadyImporting   SkipReason = "already_importing"
	SkipFulfilmentMismatch SkipReason = "fulfilment_mismatch"
)

// Outcome is the result of one import attempt
type Outcome struct {
	Status     OutcomeStatus
	SkipReason SkipReason
	Local      *LocalOrderRef
	Err        error
}

// FeedbackTag returns the tag reporting this outcome to the marketplace
func (o Outcome) FeedbackTag() string {
	switch o.Status {
	case OutcomeImported:
		return TagOrderImportSucceeded
	case OutcomeFailed:
		return TagOrderImportFailed
	default:
		return TagOrderImportSkipped
	}
}

// Imported creates a successful outcome
func Imported(ref *LocalOrderRef) Outcome {
	return Outcome{Status: OutcomeImported, Local: ref}
}

// Skipped creates a skipped outcome
func Skipped(reason SkipReason) Outcome {
	return Outcome{Status: OutcomeSkipped, SkipReason: reason}
}

// Failed creates a failed outcome
func Failed(err error) Outcome {
	return Outcome{Status: OutcomeFailed, Err: err}
}
