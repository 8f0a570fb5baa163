package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("concurrent update")
	ErrArtifactNotReady  = errors.New("artifact not ready")
)
