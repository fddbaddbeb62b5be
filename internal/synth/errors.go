package synth

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyText is returned when there is nothing to synthesize.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrNoVoice is returned when no voice can serve the requested language.
	ErrNoVoice = errors.New("no voice available for language")

	// ErrUnknownEngine is returned by Detect for an unrecognized engine name.
	ErrUnknownEngine = errors.New("unknown speech engine")
)

// maxTextSize limits a single utterance.
const maxTextSize = 5000

// ErrorCode identifies the stage that failed.
type ErrorCode string

const (
	ErrorCodeUnavailable  ErrorCode = "ENGINE_UNAVAILABLE"
	ErrorCodeSynthesis    ErrorCode = "SYNTHESIS_FAILURE"
	ErrorCodeTimeout      ErrorCode = "TIMEOUT"
	ErrorCodeAudio        ErrorCode = "AUDIO_FAILURE"
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Error is a synthesis failure with the stage it happened in.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// validateText checks an utterance before it reaches a backend.
func validateText(text string) error {
	if text == "" {
		return newError(ErrorCodeInvalidInput, "nothing to say", ErrEmptyText)
	}
	if len(text) > maxTextSize {
		return newError(ErrorCodeInvalidInput,
			fmt.Sprintf("text too long: %d bytes (max %d)", len(text), maxTextSize), nil)
	}
	return nil
}
