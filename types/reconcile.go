package types

import (
	"errors"
	"fmt"
)

// Mismatch is a disagreement between the rpc and the subgraph view of one field.
// Key is the top-level field name, or "root" when the compared values are not records.
type Mismatch struct {
	Key           string `json:"key"`
	RPCValue      any    `json:"rpcValue"`
	SubgraphValue any    `json:"subgraphValue"`
}

// ReconciledResult pairs the validated rpc payload with the mismatches found
// against the subgraph payload. Mismatches are advisory.
type ReconciledResult[T any] struct {
	Data       T          `json:"data"`
	Mismatches []Mismatch `json:"mismatches"`
}

// HasMismatches returns true if the sources disagreed on at least one field.
func (r *ReconciledResult[T]) HasMismatches() bool {
	return len(r.Mismatches) > 0
}

type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindSource
	ErrorKindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindSource:
		return "source"
	case ErrorKindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// SourceError is returned when a data source failed to serve a logical query.
type SourceError struct {
	Source   string
	Method   string
	Contract string
	Err      error
}

func (e *SourceError) Error() string {
	if e.Contract != "" {
		return fmt.Sprintf("%v %v failed (%v): %v", e.Source, e.Method, e.Contract, e.Err)
	}
	return fmt.Sprintf("%v %v failed: %v", e.Source, e.Method, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// ValidationError is returned when the authoritative payload does not conform to its schema.
type ValidationError struct {
	Method string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %v payload: %v", e.Method, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ErrorKindOf classifies err for the presentation layer.
func ErrorKindOf(err error) ErrorKind {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ErrorKindValidation
	}

	var sourceErr *SourceError
	if errors.As(err, &sourceErr) {
		return ErrorKindSource
	}

	return ErrorKindUnknown
}
