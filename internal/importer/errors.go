package importer

// ValidationError marks an item that can never be imported as-is: missing
// required fields or no usable external identifier. It is recorded against
// the run and never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ErrMissingExternalID is returned when none of the candidate identifier
// fields yields a non-empty string.
var ErrMissingExternalID = &ValidationError{Reason: "missing external job id"}
