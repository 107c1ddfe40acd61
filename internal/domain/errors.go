package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrNotFound              = errors.New("not found")
	ErrConsentRequired       = errors.New("voice consent not granted")
	ErrUnknownLanguage       = errors.New("unknown language")
	ErrMicrophoneDenied      = errors.New("microphone access denied")
	ErrRecognizerUnavailable = errors.New("speech recognition unavailable")
	ErrNotImplemented        = errors.New("not implemented")
)
