package usecase

import (
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var phoneNumberRule = validation.Match(regexp.MustCompile(`^\+?[0-9]{6,16}$`)).Error("must be a phone number in international format")

// invalid converts an ozzo validation result into an INVALID_INPUT error.
func invalid(reason string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return newError(ErrorInvalidInput, reason, verrs.Error(), err)
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return newError(ErrorInternal, "validation_internal", "internal error", err)
	}
	return newError(ErrorInvalidInput, reason, err.Error(), err)
}
