package validator

import (
	"testing"

	"slotbook/pkg/logger"
	"slotbook/pkg/model"
)

func testValidator() *BookingValidator {
	log := logger.New(logger.Config{
		Level:   "error",
		Format:  logger.JSON,
		Service: "test",
	})
	return NewBookingValidator(3, log)
}

func validIntake() *model.Intake {
	return &model.Intake{
		Story:        "Our story",
		Participants: "Alice and Bob",
		Photos:       []string{"photo-1"},
		Questions:    []string{"first question"},
	}
}

func TestValidateIntake(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(i *model.Intake)
		wantErr bool
	}{
		{name: "valid", mutate: func(i *model.Intake) {}, wantErr: false},
		{name: "valid with phone", mutate: func(i *model.Intake) { i.Phone = "+79161234567" }, wantErr: false},
		{name: "missing story", mutate: func(i *model.Intake) { i.Story = "" }, wantErr: true},
		{name: "missing participants", mutate: func(i *model.Intake) { i.Participants = "" }, wantErr: true},
		{name: "no photos", mutate: func(i *model.Intake) { i.Photos = nil }, wantErr: true},
		{name: "empty photo entry", mutate: func(i *model.Intake) { i.Photos = []string{""} }, wantErr: true},
		{name: "no questions", mutate: func(i *model.Intake) { i.Questions = nil }, wantErr: true},
		{name: "empty question entry", mutate: func(i *model.Intake) { i.Questions = []string{""} }, wantErr: true},
		{name: "phone not E.164", mutate: func(i *model.Intake) { i.Phone = "8-916-123-45-67" }, wantErr: true},
		{name: "too many photos", mutate: func(i *model.Intake) { i.Photos = []string{"a", "b", "c", "d"} }, wantErr: true},
	}

	v := testValidator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intake := validIntake()
			tt.mutate(intake)

			err := v.ValidateIntake(intake)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestValidateIntake_PhotoCapMessage(t *testing.T) {
	v := testValidator()

	intake := validIntake()
	intake.Photos = []string{"a", "b", "c", "d"}

	err := v.ValidateIntake(intake)
	verrs, ok := err.(ValidationErrors)
	if !ok || len(verrs) != 1 {
		t.Fatalf("expected a single ValidationErrors entry, got %v", err)
	}
	if verrs[0].Field != "Photos" {
		t.Errorf("expected Photos field flagged, got %s", verrs[0].Field)
	}
}
