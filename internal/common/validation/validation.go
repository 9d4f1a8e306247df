package validation

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/open-builders/giveaway-draw/internal/common/errors"
)

// Telegram public handle: letters, digits, underscores, 5-32 chars.
var channelHandleRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{4,31}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their json names so errors match the request payload.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("channel_handle", func(fl validator.FieldLevel) bool {
		return IsValidChannelHandle(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Struct validates a typed input struct and converts the first failure into a
// VALIDATION_ERROR keyed by the offending field.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperrors.NewValidationError(fe.Field(), describe(fe))
	}
	return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid input")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "channel_handle":
		return "must be 5-32 letters, digits or underscores starting with a letter"
	case "required_without":
		return fmt.Sprintf("is required when %s is empty", fe.Param())
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}

// NormalizeChannelHandle strips the leading @ and lower-cases the handle.
func NormalizeChannelHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	handle = strings.TrimPrefix(handle, "@")
	return strings.ToLower(handle)
}

// IsValidChannelHandle reports whether handle is a well-formed public handle.
// An empty handle is valid; presence is checked separately.
func IsValidChannelHandle(handle string) bool {
	if handle == "" {
		return true
	}
	return channelHandleRegex.MatchString(strings.TrimPrefix(handle, "@"))
}
