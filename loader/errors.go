package loader

import "errors"

// ErrDuplicate means a document with an identical content hash has
// already been ingested.
var ErrDuplicate = errors.New("document with identical content already ingested")

// RejectedError is returned when the classifier turns an upload away.
// The reason is safe to show to the user.
type RejectedError struct {
	Reason string
}

func (e RejectedError) Error() string {
	return "document rejected: " + e.Reason
}
