package domain

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes failures so callers can pick the right recovery.
type ErrorKind string

const (
	KindConfiguration     ErrorKind = "configuration"
	KindNoDocuments       ErrorKind = "no_documents"
	KindStoreUnavailable  ErrorKind = "store_unavailable"
	KindEmbeddingService  ErrorKind = "embedding_service"
	KindGenerationService ErrorKind = "generation_service"
)

// Error is a categorized error with an optional remediation hint.
// Transient marks failures worth retrying (timeouts, rate limits).
type Error struct {
	Kind      ErrorKind
	Message   string
	Hint      string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind so sentinel comparisons work across wrapped causes.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates a categorized error wrapping an optional cause.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithHint attaches a one-line suggested fix for the interactive user.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// MarkTransient flags the error as a retry candidate.
func (e *Error) MarkTransient() *Error {
	e.Transient = true
	return e
}

func isKind(err error, kind ErrorKind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return isKind(err, KindConfiguration) }

// IsNoDocuments reports whether err means no supported files were found.
func IsNoDocuments(err error) bool { return isKind(err, KindNoDocuments) }

// IsStoreUnavailable reports whether err means the vector store could
// not be opened, either because it was never ingested or is unreadable.
func IsStoreUnavailable(err error) bool { return isKind(err, KindStoreUnavailable) }

// IsEmbeddingService reports whether err came from the embedding API.
func IsEmbeddingService(err error) bool { return isKind(err, KindEmbeddingService) }

// IsGenerationService reports whether err came from the generative API.
func IsGenerationService(err error) bool { return isKind(err, KindGenerationService) }

// IsTransient reports whether err is a retry candidate.
func IsTransient(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Transient
	}
	return false
}

// Hint returns the remediation hint attached to err, if any.
func Hint(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Hint
	}
	return ""
}
