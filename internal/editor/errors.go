package editor

import "errors"

var (
	// ErrInvalidIndex reports an ordinal selection outside 1..count.
	ErrInvalidIndex = errors.New("no node with that index")
	// ErrNothingSelected reports a mutation with an empty selection.
	ErrNothingSelected = errors.New("nothing selected")
	// ErrLastUserID guards the final user identity of a key.
	ErrLastUserID = errors.New("cannot delete the last user id")
	// ErrPairMismatch reports a selected node with no counterpart on
	// the secret side; the whole transaction is abandoned.
	ErrPairMismatch = errors.New("public and secret keyblocks do not match")
	// ErrSigningFailed wraps a Signer failure.
	ErrSigningFailed = errors.New("signing failed")
	// ErrCannotUnlock wraps a failed secret-key unlock.
	ErrCannotUnlock = errors.New("cannot unlock secret key")
	// ErrProtectionFailed wraps a failed re-protection; earlier keys
	// keep their new envelopes, nothing is rolled back.
	ErrProtectionFailed = errors.New("protection failed")
	// ErrPersistenceFailed wraps a Store commit failure during save.
	ErrPersistenceFailed = errors.New("persisting keyblock failed")
	// ErrNoSecretKey reports an operation that needs the secret side.
	ErrNoSecretKey = errors.New("secret keyblock not available")
)
