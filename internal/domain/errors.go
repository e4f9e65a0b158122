package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies sync failures.
type ErrorKind string

const (
	KindNetwork ErrorKind = "network" // transport failure or non-2xx from a feed
	KindShape   ErrorKind = "shape"   // envelope mismatch or non-success result code
	KindRecord  ErrorKind = "record"  // a single record could not be normalized
	KindStore   ErrorKind = "store"   // persistence failure
)

// Sentinels for errors.Is checks against a *SyncError.
var (
	ErrNetwork = errors.New("upstream network failure")
	ErrShape   = errors.New("unexpected upstream response shape")
	ErrRecord  = errors.New("invalid record")
	ErrStore   = errors.New("store failure")
)

// SyncError is the tagged failure returned by fetchers, normalizers and the
// upsert engine. Only KindRecord is recoverable; the rest abort the run.
type SyncError struct {
	Kind ErrorKind
	Feed string
	Op   string
	Err  error
}

func (e *SyncError) Error() string {
	if e.Feed == "" {
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s sync: %s %s: %v", e.Feed, e.Kind, e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNetwork) and friends match on Kind.
func (e *SyncError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrShape:
		return e.Kind == KindShape
	case ErrRecord:
		return e.Kind == KindRecord
	case ErrStore:
		return e.Kind == KindStore
	}
	return false
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(feed, op string, err error) *SyncError {
	return &SyncError{Kind: KindNetwork, Feed: feed, Op: op, Err: err}
}

// NewShapeError wraps an envelope mismatch.
func NewShapeError(feed, op string, err error) *SyncError {
	return &SyncError{Kind: KindShape, Feed: feed, Op: op, Err: err}
}

// NewRecordError wraps a per-record normalization failure.
func NewRecordError(feed, op string, err error) *SyncError {
	return &SyncError{Kind: KindRecord, Feed: feed, Op: op, Err: err}
}

// NewStoreError wraps a persistence failure.
func NewStoreError(feed, op string, err error) *SyncError {
	return &SyncError{Kind: KindStore, Feed: feed, Op: op, Err: err}
}

// IsUpstreamFailure reports whether err should surface as an upstream-dependency
// failure (network or shape) rather than an internal one.
func IsUpstreamFailure(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrShape)
}
