package service

import (
	"context"
	"errors"
	slotserrors "slotbook/internal/slots/errors"
	"slotbook/internal/slots/repository"
	"slotbook/internal/slots/validator"
	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/model"
	"sync"
	"time"
)

type SlotService interface {
	Create(ctx context.Context, slot *model.Slot) error
	GetByID(ctx context.Context, id string) (*model.Slot, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Slot, int64, error)
	Delete(ctx context.Context, id string) error
	FreeDates(ctx context.Context) ([]string, error)
	FreeTimes(ctx context.Context, date string) ([]string, error)
}

type slotService struct {
	repo      repository.SlotRepository
	validator *validator.SlotValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewSlotService(
	repo repository.SlotRepository,
	validator *validator.SlotValidator,
	cfg *config.Config,
) SlotService {
	return &slotService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *slotService) Create(ctx context.Context, slot *model.Slot) error {
	if err := s.validate(slot); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, slot); err != nil {
		if errors.Is(err, slotserrors.ErrDuplicateSlot) {
			return apperrors.Conflict("A slot already exists for this date and time")
		}
		s.cfg.Log.Error("Failed to create slot", "date", slot.Date, "time", slot.TimeOfDay, "error", err)
		return apperrors.Internal("Failed to create slot", err)
	}

	s.cfg.Log.Info("Slot created successfully",
		"id", slot.ID,
		"date", slot.Date,
		"time", slot.TimeOfDay,
	)
	return nil
}

func (s *slotService) GetByID(ctx context.Context, id string) (*model.Slot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Slot", id)
		}
		if errors.Is(err, slotserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid slot ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve slot", err)
	}

	return slot, nil
}

func (s *slotService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Slot, int64, error) {
	var count int64
	var slots []*model.Slot
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count slots", "error", errCount)
			errCount = apperrors.Internal("Failed to count slots", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		slots, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list slots", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve slots", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return slots, count, nil
}

// Delete removes a free slot. Taken slots are protected: the active booking
// referencing them must be resolved through the unlock flow first.
func (s *slotService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Slot ID cannot be empty")
	}

	if err := s.repo.DeleteFree(ctx, id); err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Slot", id)
		}
		if errors.Is(err, slotserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid slot ID format")
		}
		if errors.Is(err, slotserrors.ErrSlotTaken) {
			return apperrors.Conflict("Slot is taken by an active booking and cannot be deleted")
		}
		s.cfg.Log.Error("Failed to delete slot", "id", id, "error", err)
		return apperrors.Internal("Failed to delete slot", err)
	}

	s.cfg.Log.Info("Slot deleted successfully", "id", id)
	return nil
}

// FreeDates lists dates from today onward that still have at least one free
// slot. Past dates never surface even if their slots were never taken.
func (s *slotService) FreeDates(ctx context.Context) ([]string, error) {
	today := s.now().Format(model.SlotDateLayout)

	dates, err := s.repo.FreeDates(ctx, today)
	if err != nil {
		s.cfg.Log.Error("Failed to list free dates", "error", err)
		return nil, apperrors.Internal("Failed to retrieve free dates", err)
	}

	return dates, nil
}

func (s *slotService) FreeTimes(ctx context.Context, date string) ([]string, error) {
	if _, err := time.Parse(model.SlotDateLayout, date); err != nil {
		return nil, apperrors.InvalidInput("Date must be in YYYY-MM-DD format")
	}

	times, err := s.repo.FreeTimes(ctx, date)
	if err != nil {
		s.cfg.Log.Error("Failed to list free times", "date", date, "error", err)
		return nil, apperrors.Internal("Failed to retrieve free times", err)
	}

	return times, nil
}

func (s *slotService) validate(slot *model.Slot) error {
	if err := s.validator.Validate(slot); err != nil {
		s.cfg.Log.Warn("Slot validation failed", "error", err)
		return apperrors.Validation("Slot validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}
