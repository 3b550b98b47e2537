// Package ghosterrors defines the error kinds named in the service's
// error-handling design, each a distinct Go type so callers can branch
// on kind with errors.As instead of sniffing message prefixes.
package ghosterrors

import "fmt"

// InvalidInputError is raised by the Ogg-Opus muxer for an unsupported
// sample rate or an oversized packet.
type InvalidInputError struct {
	Msg string
}

func (e *InvalidInputError) Error() string { return "invalid input: " + e.Msg }

func NewInvalidInput(format string, args ...any) error {
	return &InvalidInputError{Msg: fmt.Sprintf(format, args...)}
}

// DecodeFailureError is raised when the Ogg/Opus bitstream cannot be
// decoded.
type DecodeFailureError struct {
	Msg string
}

func (e *DecodeFailureError) Error() string { return "audio decode failed: " + e.Msg }

func NewDecodeFailure(format string, args ...any) error {
	return &DecodeFailureError{Msg: fmt.Sprintf(format, args...)}
}

// ProfileInvalidError is raised at model-load time when the model's
// metadata cannot be turned into a usable Model Profile. Fatal to
// service startup.
type ProfileInvalidError struct {
	Msg string
}

func (e *ProfileInvalidError) Error() string { return "model profile invalid: " + e.Msg }

func NewProfileInvalid(format string, args ...any) error {
	return &ProfileInvalidError{Msg: fmt.Sprintf(format, args...)}
}

// BackendInitError is raised when an execution-provider session fails
// to construct. Recoverable by falling back to CPU; fatal only if CPU
// construction also fails.
type BackendInitError struct {
	Msg string
}

func (e *BackendInitError) Error() string { return "backend init failed: " + e.Msg }

func NewBackendInit(format string, args ...any) error {
	return &BackendInitError{Msg: fmt.Sprintf(format, args...)}
}

// InferenceFailureError is raised at run time when a model invocation
// fails after all input-shape attempts are exhausted.
type InferenceFailureError struct {
	Msg string
}

func (e *InferenceFailureError) Error() string { return "asr failed: " + e.Msg }

func NewInferenceFailure(format string, args ...any) error {
	return &InferenceFailureError{Msg: fmt.Sprintf(format, args...)}
}

// ProtocolViolationError is raised by the session core for malformed
// or out-of-sequence client messages.
type ProtocolViolationError struct {
	Msg string
}

func (e *ProtocolViolationError) Error() string { return e.Msg }

func NewProtocolViolation(format string, args ...any) error {
	return &ProtocolViolationError{Msg: fmt.Sprintf(format, args...)}
}
