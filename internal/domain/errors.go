package domain

import "errors"

var (
	ErrUnsupportedCurrency = errors.New("unsupported quote currency")
	ErrFixedFXInLiveMode   = errors.New("fixed fx provider not allowed in live mode")
	ErrRateLimited         = errors.New("rate limited")
	ErrQtyMismatch         = errors.New("entry/exit quantity mismatch")
	ErrMissingEntryFill    = errors.New("exit qty not synced from entry fill")
	ErrInvalidTransition   = errors.New("invalid control transition")
	ErrNotFound            = errors.New("not found")
)
