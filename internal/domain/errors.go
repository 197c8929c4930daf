package domain

import "errors"

var (
	ErrMalformedMessage     = errors.New("malformed message")
	ErrUnknownChime         = errors.New("unknown chime")
	ErrRenderFailed         = errors.New("render failed")
	ErrNoPendingSession     = errors.New("nothing pending")
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrDuplicateRequest     = errors.New("ring request already seen")
	ErrCustomStateNotFound  = errors.New("custom state not found")
	ErrInvalidMode          = errors.New("invalid mode")
	ErrInvalidCustomState   = errors.New("invalid custom state")
	ErrInvalidResponse      = errors.New("invalid response")
	ErrNodeStopped          = errors.New("node is not running")
	ErrSecretNotFound       = errors.New("secret not found")
)
