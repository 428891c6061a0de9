package models

import "errors"

var (
	ErrConfiguration        = errors.New("configuration error")
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	ErrInvalidArguments     = errors.New("invalid arguments")
	ErrNotFound             = errors.New("not found")
	ErrModelUnavailable     = errors.New("model unavailable")
	ErrToolLoopExceeded     = errors.New("tool loop exceeded")
	ErrConversationNotFound = errors.New("conversation not found")
)
