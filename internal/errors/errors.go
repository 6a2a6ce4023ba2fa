// Package errors provides the island error taxonomy and error handling helpers.
//
// Core services return errors tagged with a Kind. Only the HTTP boundary turns
// a Kind into a status code; nothing below it knows about transport vocabulary.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an error for callers that need to react to it.
type Kind uint8

const (
	// KindUnknown is the kind of any error that was never tagged.
	KindUnknown Kind = iota
	// KindMalformedInput means a payload could not be parsed into the expected shape.
	KindMalformedInput
	// KindInvalidValue means a payload parsed but its value is outside the valid domain.
	KindInvalidValue
	// KindNotFound means the requested resource does not exist.
	KindNotFound
	// KindConfiguration means the stored data cannot support the request (e.g. no island machine).
	KindConfiguration
	// KindTransportConnection means the remote end refused or could not be reached.
	KindTransportConnection
	// KindTransportTimeout means the remote end did not answer in time.
	KindTransportTimeout
	// KindTransportGeneric covers every other remote API failure.
	KindTransportGeneric
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindMalformedInput:      "malformed_input",
	KindInvalidValue:        "invalid_value",
	KindNotFound:            "not_found",
	KindConfiguration:       "configuration",
	KindTransportConnection: "transport_connection",
	KindTransportTimeout:    "transport_timeout",
	KindTransportGeneric:    "transport_generic",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Sentinels for errors.Is comparisons by kind.
var (
	ErrMalformedInput      = &Error{Kind: KindMalformedInput}
	ErrInvalidValue        = &Error{Kind: KindInvalidValue}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrConfiguration       = &Error{Kind: KindConfiguration}
	ErrTransportConnection = &Error{Kind: KindTransportConnection}
	ErrTransportTimeout    = &Error{Kind: KindTransportTimeout}
	ErrTransportGeneric    = &Error{Kind: KindTransportGeneric}
)

// Error is an error tagged with a Kind.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "reporting.GetScanned".
	Op string
	// Msg is a human readable description safe to echo to callers.
	Msg string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match when target is an *Error sentinel with the same Kind.
// Sentinels carry no Op or Msg, which is what distinguishes them from real errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" && t.Msg == "" && t.Err == nil {
		return e.Kind == t.Kind
	}
	return e == t
}

// E builds a tagged error.
func E(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// MalformedInput tags a parse failure.
func MalformedInput(op string, err error) *Error {
	return E(KindMalformedInput, op, "malformed input", err)
}

// InvalidValue tags a value outside its valid domain.
func InvalidValue(op, format string, args ...any) *Error {
	return E(KindInvalidValue, op, fmt.Sprintf(format, args...), nil)
}

// NotFound tags a missing resource.
func NotFound(op, format string, args ...any) *Error {
	return E(KindNotFound, op, fmt.Sprintf(format, args...), nil)
}

// Configuration tags data that cannot support the requested operation.
func Configuration(op, format string, args ...any) *Error {
	return E(KindConfiguration, op, fmt.Sprintf(format, args...), nil)
}

// KindOf returns the Kind of the first tagged error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the caller-safe message of the first tagged error in err's chain.
// Untagged errors yield a generic message so internal details are not echoed.
func Message(err error) string {
	var e *Error
	if stderrors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}
