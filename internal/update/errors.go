package update

import "errors"

// Error kinds callers branch on with errors.Is. Policy violations surface
// as netpolicy.ErrDisallowed.
var (
	// ErrNetwork marks a transient transport failure. Eligible for
	// user-triggered retry.
	ErrNetwork = errors.New("update network failure")

	// ErrInvalidResponse means the feed or an asset endpoint produced a
	// payload the pipeline cannot parse. Not retryable.
	ErrInvalidResponse = errors.New("update feed response invalid")

	// ErrVerification marks a checksum mismatch, missing integrity
	// metadata, or an empty signature. Fatal to the current attempt; the
	// prior binary stays installed via rollback.
	ErrVerification = errors.New("update verification failed")

	// ErrIO marks a filesystem failure during replacement; the OS
	// message is preserved in the wrap.
	ErrIO = errors.New("update io failure")
)
