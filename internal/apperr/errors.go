// Package apperr defines the error taxonomy shared by the ingestion and
// answering pipelines. Every failure surfaced to a caller carries one of
// these codes so the HTTP boundary can map it to a distinct status.
package apperr

import "fmt"

type Code string

const (
	CodeValidation  Code = "VALIDATION"
	CodeExtraction  Code = "EXTRACTION"
	CodeEmbedding   Code = "EMBEDDING"
	CodeRetrieval   Code = "RETRIEVAL"
	CodeCompletion  Code = "COMPLETION"
	CodePersistence Code = "PERSISTENCE"
)

type Error struct {
	Code   Code
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("%s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(code Code, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
