package session

import "errors"

// Error taxonomy. None of these is fatal; callers recover locally.
var (
	// ErrTransportUnavailable reports that the matching service cannot be reached.
	ErrTransportUnavailable = errors.New("transport unavailable")
	// ErrInvalidTransition reports an intent issued in a state that does not permit it.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrEmptyMessage reports a send whose body is empty after trimming.
	ErrEmptyMessage = errors.New("empty message")
	// ErrNotPaired reports a send attempted before pairing.
	ErrNotPaired = errors.New("not paired")
	// ErrInvalidEmoji reports an emoji selection that is not a single grapheme.
	ErrInvalidEmoji = errors.New("emoji must be a single grapheme")
)
