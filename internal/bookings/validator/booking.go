package validator

import (
	"errors"
	"fmt"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookingValidator struct {
	validate        *validator.Validate
	maxIntakePhotos int
	logger          *logger.Logger
}

func NewBookingValidator(maxIntakePhotos int, log *logger.Logger) *BookingValidator {
	v := validator.New()

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate:        v,
		maxIntakePhotos: maxIntakePhotos,
		logger:          log,
	}
}

// ValidateIntake checks the collected intake payload before any slot is
// claimed, so validation failures never consume a slot.
func (v *BookingValidator) ValidateIntake(intake *model.Intake) error {
	if err := v.validate.Struct(intake); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if len(intake.Photos) > v.maxIntakePhotos {
		return ValidationErrors{
			ValidationError{
				Field:   "Photos",
				Message: fmt.Sprintf("photos count (%d) exceeds maximum (%d)", len(intake.Photos), v.maxIntakePhotos),
			},
		}
	}

	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must have at least %s entries", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "e164":
			message = fmt.Sprintf("%s must be in E.164 format (e.g., +79161234567)", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
