package model

import "fmt"

// CollectionFinalisedError is returned when a merge targets a collection
// that has been finalised. The write is rejected; reads keep working.
type CollectionFinalisedError struct {
	Key CollectionKey
}

func (e *CollectionFinalisedError) Error() string {
	return fmt.Sprintf("collection %s is finalised and cannot accept new evidence", e.Key)
}

// InvariantViolationError signals a programmer-error-class breakage:
// state that the corpus loader's validation should have made impossible
// (e.g. a match referencing an undeclared KPA). It carries the offending
// item's identity so operators can correlate without re-running a scan.
type InvariantViolationError struct {
	SourceID       string
	SourcePlatform string
	Reason         string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation for %s item %q: %s", e.SourcePlatform, e.SourceID, e.Reason)
}
