// Package nexuserr defines the error taxonomy shared by every component
// of the shell core.
package nexuserr

import "fmt"

// Kind classifies an Error so callers can branch with errors.Is without
// parsing messages.
type Kind string

const (
	KindSyntax            Kind = "SyntaxError"
	KindPermissionDenied  Kind = "PermissionDenied"
	KindNotFound          Kind = "NotFound"
	KindInvalidArgument   Kind = "InvalidArgument"
	KindExecutionFailure  Kind = "ExecutionFailure"
	KindTimeout           Kind = "Timeout"
	KindCancelled         Kind = "Cancelled"
	KindMemoryExceeded    Kind = "MemoryExceeded"
	KindTransactionAbort  Kind = "TransactionAborted"
	KindInternal          Kind = "InternalError"
)

// Error is the single error type that crosses every boundary in the
// shell core: parser, engine, bridge, capability store, transaction
// manager, recorder.
type Error struct {
	Kind    Kind
	Message string
	Source  error
	// Offset is the byte offset into the offending input, valid for
	// KindSyntax only. -1 when not applicable.
	Offset int
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s: %s (at offset %d)", e.Kind, e.Message, e.Offset)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Source
}

// New builds an Error with no source and no offset.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Offset: -1}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap attaches a Kind to an underlying error, preserving it for Unwrap.
func Wrap(kind Kind, source error, message string) *Error {
	return &Error{Kind: kind, Message: message, Source: source, Offset: -1}
}

// AtOffset builds a KindSyntax Error carrying message and the given
// byte offset.
func AtOffset(message string, offset int) *Error {
	return &Error{Kind: KindSyntax, Message: message, Offset: offset}
}

// Is allows errors.Is(err, nexuserr.New(KindNotFound, "")) to match on
// Kind alone, ignoring Message/Source/Offset.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
