package hook

import (
	"errors"
	"fmt"
)

var (
	ErrHookNotFound       = errors.New("hook not found")
	ErrHookAlreadyExists  = errors.New("hook already exists")
	ErrEmptyHookID        = errors.New("hook id cannot be empty")
	ErrRatelimitClientNil = errors.New("rate limit: client is nil")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")

	// The per-level errors wrap ErrRateLimitExceeded, so errors.Is matches
	// either the specific level or the general condition.
	ErrGlobalRateLimitExceeded = fmt.Errorf("global %w", ErrRateLimitExceeded)
	ErrClientRateLimitExceeded = fmt.Errorf("client %w", ErrRateLimitExceeded)
	ErrTopicRateLimitExceeded  = fmt.Errorf("topic %w", ErrRateLimitExceeded)
)
