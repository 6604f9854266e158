package generation

import (
	"errors"
	"fmt"

	"github.com/stablegen/gateway/internal/services/remoteworker"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrGenerationFailed = errors.New("generation failed")
)

// InvalidParameterError names the offending request field.
type InvalidParameterError struct {
	Field   string
	Message string
}

func (e *InvalidParameterError) Error() string {
	return e.Message
}

func (e *InvalidParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

func invalidParameter(field, message string) error {
	return &InvalidParameterError{Field: field, Message: message}
}

// GenerationFailedError carries the worker failure that ended a request.
type GenerationFailedError struct {
	Failure *remoteworker.Failure
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Failure.Kind, e.Failure.Error())
}

func (e *GenerationFailedError) Is(target error) bool {
	return target == ErrGenerationFailed
}

func (e *GenerationFailedError) Unwrap() error {
	return e.Failure
}

func (e *GenerationFailedError) Kind() remoteworker.Kind {
	return e.Failure.Kind
}
