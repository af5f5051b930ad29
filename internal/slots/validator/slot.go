package validator

import (
	"errors"
	"fmt"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"
	"strings"
	"time"

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

type SlotValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewSlotValidator(log *logger.Logger) *SlotValidator {
	v := validator.New()

	if err := v.RegisterValidation("slot_date", validateSlotDate); err != nil {
		log.Fatal("Failed to register 'slot_date' validator", "error", err)
	}
	if err := v.RegisterValidation("slot_time", validateSlotTime); err != nil {
		log.Fatal("Failed to register 'slot_time' validator", "error", err)
	}

	log.Info("Slot validator initialized successfully")

	return &SlotValidator{
		validate: v,
		logger:   log,
	}
}

func validateSlotDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(model.SlotDateLayout, fl.Field().String())
	return err == nil
}

func validateSlotTime(fl validator.FieldLevel) bool {
	_, err := time.Parse(model.SlotTimeLayout, fl.Field().String())
	return err == nil
}

func (v *SlotValidator) Validate(slot *model.Slot) error {
	if err := v.validate.Struct(slot); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	return nil
}

func (v *SlotValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "slot_date":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", err.Field())
		case "slot_time":
			message = fmt.Sprintf("%s must be a time in HH:MM format", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
