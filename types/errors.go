// Copyright (C) 2019-2026, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "errors"

// Common substrate errors.
var (
	ErrNodeNotFound       = errors.New("node not found")
	ErrLinkNotFound       = errors.New("link not found")
	ErrSubEntityNotFound  = errors.New("sub-entity not found")
	ErrUnknownSchema      = errors.New("unknown schema")
	ErrPayloadTooLarge    = errors.New("payload exceeds limit")
	ErrUnauthorizedEmitter = errors.New("unauthorized emitter")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrRateLimited        = errors.New("rate limit")
	ErrIdempotentReplay   = errors.New("idempotent replay")
	ErrNotInitialized     = errors.New("engine not initialized")
	ErrCircuitOpen        = errors.New("circuit open")
	ErrTimeout            = errors.New("operation timeout")
)
