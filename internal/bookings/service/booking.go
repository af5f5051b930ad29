package service

import (
	"context"
	"errors"
	bookingserrors "slotbook/internal/bookings/errors"
	"slotbook/internal/bookings/repository"
	"slotbook/internal/bookings/validator"
	"slotbook/internal/notify"
	slotserrors "slotbook/internal/slots/errors"
	slotsrepo "slotbook/internal/slots/repository"
	usersrepo "slotbook/internal/users/repository"
	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/model"
	"slotbook/pkg/sanitizer"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

type BookingService interface {
	// Reserve runs the reservation protocol: claim the slot and create the
	// booking atomically, then start the payment hold.
	Reserve(ctx context.Context, user *model.User, date, timeOfDay string, intake *model.Intake) (*model.Booking, error)

	// SubmitReceipt moves a held booking to review and stops its hold.
	SubmitReceipt(ctx context.Context, id string, userID int64, receiptRef string) error

	// Approve confirms a booking under review.
	Approve(ctx context.Context, id string) error

	// Reject declines a booking under review and frees its slot.
	Reject(ctx context.Context, id string, reason string) error

	// Cancel terminates an active booking on behalf of the given actor.
	Cancel(ctx context.Context, id string, actor model.Actor) error

	// ExpireHold is the scheduler callback: cancel a booking whose payment
	// hold ran out, unless its state already moved on.
	ExpireHold(ctx context.Context, id string)

	// UnlockSlot force-frees a slot by date and time, resolving whatever
	// booking holds it.
	UnlockSlot(ctx context.Context, date, timeOfDay string) (model.UnlockOutcome, error)

	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetDetail(ctx context.Context, id string) (*model.BookingDetail, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error)
	ActiveForUser(ctx context.Context, userID int64) ([]*model.Booking, error)

	// ReconcileHolds rebuilds hold timers from persisted deadlines after a
	// restart, expiring any that ran out while the service was down.
	ReconcileHolds(ctx context.Context) error
}

// Holds is the subset of the hold scheduler the service uses.
type Holds interface {
	ArmAt(bookingID string, deadline time.Time)
	Disarm(bookingID string) bool
}

// PriceSource yields the current per-question price.
type PriceSource interface {
	GetPrice(ctx context.Context) (int64, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	slotRepo  slotsrepo.SlotRepository
	userRepo  usersrepo.UserRepository
	prices    PriceSource
	notifier  notify.Notifier
	holds     Holds
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	slotRepo slotsrepo.SlotRepository,
	userRepo usersrepo.UserRepository,
	prices PriceSource,
	notifier notify.Notifier,
	holds Holds,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		slotRepo:  slotRepo,
		userRepo:  userRepo,
		prices:    prices,
		notifier:  notifier,
		holds:     holds,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Reserve(ctx context.Context, user *model.User, date, timeOfDay string, intake *model.Intake) (*model.Booking, error) {
	if user == nil || user.ID == 0 {
		return nil, apperrors.InvalidInput("User is required")
	}

	s.sanitizeIntake(intake)
	if err := s.validator.ValidateIntake(intake); err != nil {
		s.cfg.Log.Warn("Intake validation failed", "user_id", user.ID, "error", err)
		return nil, apperrors.Validation("Intake validation failed", map[string]any{"error": err.Error()})
	}

	active, err := s.repo.FindActiveByUser(ctx, user.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to check active bookings", err)
	}
	if len(active) > 0 {
		return nil, apperrors.Conflict("You already have an active booking")
	}

	slot, err := s.slotRepo.FindByDateTime(ctx, date, timeOfDay)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Slot")
		}
		return nil, apperrors.Internal("Failed to find slot", err)
	}
	if slot.Taken {
		return nil, apperrors.Conflict("This slot is no longer available")
	}

	// Price is read once and frozen into the booking; later price changes
	// never touch existing reservations.
	price, err := s.prices.GetPrice(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to read price", err)
	}

	user.Phone = intake.Phone

	booking := &model.Booking{
		UserID:        user.ID,
		SlotID:        slot.ID,
		Story:         intake.Story,
		Participants:  intake.Participants,
		Photos:        intake.Photos,
		Questions:     intake.Questions,
		NumQuestions:  len(intake.Questions),
		Amount:        int64(len(intake.Questions)) * price,
		Status:        model.StatusCreated,
		HoldExpiresAt: s.now().Add(s.cfg.PaymentHoldTTL).UTC().Truncate(time.Millisecond),
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		// The claim's taken=false condition is the serialization point: of
		// any number of concurrent reservations for this slot, exactly one
		// claim matches.
		if err := s.slotRepo.Claim(sessCtx, slot.ID); err != nil {
			if errors.Is(err, slotserrors.ErrSlotUnavailable) {
				return apperrors.Conflict("This slot is no longer available")
			}
			return apperrors.Internal("Failed to claim slot", err)
		}

		if err := s.userRepo.Upsert(sessCtx, user); err != nil {
			return apperrors.Internal("Failed to store user", err)
		}

		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to reserve slot",
			"user_id", user.ID,
			"date", date,
			"time", timeOfDay,
			"error", err,
		)
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, booking.ID, model.StatusWaitingPayment, model.StatusCreated); err != nil {
		s.cfg.Log.Error("Failed to move booking to waiting payment", "id", booking.ID, "error", err)
	} else {
		booking.Status = model.StatusWaitingPayment
	}

	s.holds.ArmAt(booking.ID, booking.HoldExpiresAt)

	s.notifyUser(ctx, booking.UserID, notify.EventBookingReserved, s.event(booking, slot, ""))

	s.cfg.Log.Info("Booking reserved",
		"id", booking.ID,
		"user_id", booking.UserID,
		"slot_id", booking.SlotID,
		"amount", booking.Amount,
		"hold_expires_at", booking.HoldExpiresAt,
	)
	return booking, nil
}

func (s *bookingService) SubmitReceipt(ctx context.Context, id string, userID int64, receiptRef string) error {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if booking.UserID != userID {
		return apperrors.Forbidden("Booking belongs to another user")
	}

	// The conditional transition decides the receipt-vs-timeout race: if the
	// hold fired first the booking is already CANCELLED and this fails.
	err = s.repo.UpdateStatus(ctx, id, model.StatusChecking, model.StatusCreated, model.StatusWaitingPayment)
	if err != nil {
		return s.translateTransitionErr(err, id, "Booking is no longer awaiting payment")
	}

	s.holds.Disarm(id)

	booking.Status = model.StatusChecking
	messageRef, err := s.notifier.NotifyAdmin(ctx, notify.EventReceiptSubmitted, s.event(booking, nil, receiptRef))
	if err == nil {
		if refErr := s.repo.SetAdminMessageRef(ctx, id, messageRef); refErr != nil {
			s.cfg.Log.Warn("Failed to store admin message ref", "id", id, "error", refErr)
		}
	}

	s.cfg.Log.Info("Receipt submitted", "id", id, "user_id", userID)
	return nil
}

func (s *bookingService) Approve(ctx context.Context, id string) error {
	err := s.repo.UpdateStatus(ctx, id, model.StatusConfirmed, model.StatusChecking)
	if err != nil {
		return s.translateTransitionErr(err, id, "Booking is no longer awaiting review")
	}

	booking, err := s.GetByID(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Failed to load approved booking for notification", "id", id, "error", err)
		return nil
	}

	s.notifyUser(ctx, booking.UserID, notify.EventBookingApproved, s.event(booking, nil, ""))
	s.editAdmin(ctx, booking, notify.EventBookingApproved, "")

	s.cfg.Log.Info("Booking approved", "id", id, "user_id", booking.UserID)
	return nil
}

func (s *bookingService) Reject(ctx context.Context, id string, reason string) error {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.repo.UpdateStatus(ctx, id, model.StatusRejected, model.StatusChecking)
	if err != nil {
		return s.translateTransitionErr(err, id, "Booking is no longer awaiting review")
	}

	s.releaseSlot(ctx, booking.SlotID)

	s.notifyUser(ctx, booking.UserID, notify.EventBookingRejected, s.event(booking, nil, reason))
	s.editAdmin(ctx, booking, notify.EventBookingRejected, reason)

	s.cfg.Log.Info("Booking rejected", "id", id, "user_id", booking.UserID, "reason", reason)
	return nil
}

func (s *bookingService) Cancel(ctx context.Context, id string, actor model.Actor) error {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.repo.UpdateStatus(ctx, id, model.StatusCancelled,
		model.StatusCreated, model.StatusWaitingPayment, model.StatusConfirmed)
	if err != nil {
		return s.translateTransitionErr(err, id, "Booking can no longer be cancelled")
	}

	s.holds.Disarm(id)
	s.releaseSlot(ctx, booking.SlotID)

	// The party who did not cancel is the one who needs to hear about it.
	payload := s.event(booking, nil, string(actor))
	if actor == model.ActorUser {
		if _, err := s.notifier.NotifyAdmin(ctx, notify.EventBookingCancelled, payload); err != nil {
			s.cfg.Log.Warn("Failed to notify admin about cancellation", "id", id, "error", err)
		}
	} else {
		s.notifyUser(ctx, booking.UserID, notify.EventBookingCancelled, payload)
	}

	s.cfg.Log.Info("Booking cancelled", "id", id, "actor", actor)
	return nil
}

func (s *bookingService) ExpireHold(ctx context.Context, id string) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Hold expiry could not load booking", "id", id, "error", err)
		return
	}

	err = s.repo.UpdateStatus(ctx, id, model.StatusCancelled,
		model.StatusCreated, model.StatusWaitingPayment)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStateChanged) {
			// The user submitted a receipt (or cancelled) before the timer
			// fired. Nothing to do.
			s.cfg.Log.Info("Hold expired after state change, ignoring", "id", id)
			return
		}
		s.cfg.Log.Error("Failed to cancel booking on hold expiry", "id", id, "error", err)
		return
	}

	s.releaseSlot(ctx, booking.SlotID)

	s.notifyUser(ctx, booking.UserID, notify.EventHoldExpired, s.event(booking, nil, ""))

	s.cfg.Log.Info("Payment hold expired, booking cancelled", "id", id, "user_id", booking.UserID)
}

func (s *bookingService) UnlockSlot(ctx context.Context, date, timeOfDay string) (model.UnlockOutcome, error) {
	slot, err := s.slotRepo.FindByDateTime(ctx, date, timeOfDay)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			return "", apperrors.NotFound("Slot")
		}
		return "", apperrors.Internal("Failed to find slot", err)
	}

	if !slot.Taken {
		return model.UnlockAlreadyFree, nil
	}

	booking, err := s.repo.FindActiveBySlot(ctx, slot.ID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			// Taken slot with no active booking: an interrupted release.
			// Self-heal by freeing it.
			if err := s.slotRepo.Release(ctx, slot.ID); err != nil {
				return "", apperrors.Internal("Failed to release stale slot", err)
			}
			s.cfg.Log.Warn("Released stale slot with no active booking", "slot_id", slot.ID)
			return model.UnlockReleasedStale, nil
		}
		return "", apperrors.Internal("Failed to find booking for slot", err)
	}

	var outcome model.UnlockOutcome
	var event string

	switch booking.Status {
	case model.StatusCreated, model.StatusWaitingPayment:
		err = s.repo.UpdateStatus(ctx, booking.ID, model.StatusCancelled,
			model.StatusCreated, model.StatusWaitingPayment)
		outcome = model.UnlockCancelledUnpaid
		event = notify.EventBookingCancelled
	case model.StatusChecking:
		err = s.repo.UpdateStatus(ctx, booking.ID, model.StatusRejected, model.StatusChecking)
		outcome = model.UnlockRejectedUnverified
		event = notify.EventBookingRejected
	case model.StatusConfirmed:
		err = s.repo.UpdateStatus(ctx, booking.ID, model.StatusCancelled, model.StatusConfirmed)
		outcome = model.UnlockCancelledConfirmed
		event = notify.EventBookingCancelled
	default:
		return "", apperrors.Internal("Active booking in unexpected status", nil)
	}

	if err != nil {
		return "", s.translateTransitionErr(err, booking.ID, "Booking state changed during unlock")
	}

	s.holds.Disarm(booking.ID)

	if err := s.slotRepo.Release(ctx, slot.ID); err != nil {
		return "", apperrors.Internal("Failed to release slot", err)
	}

	s.notifyUser(ctx, booking.UserID, event, s.event(booking, slot, string(model.ActorAdmin)))

	s.cfg.Log.Info("Slot unlocked",
		"slot_id", slot.ID,
		"booking_id", booking.ID,
		"outcome", outcome,
	)
	return outcome, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) GetDetail(ctx context.Context, id string) (*model.BookingDetail, error) {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &model.BookingDetail{Booking: booking}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		slot, err := s.slotRepo.FindByID(ctx, booking.SlotID)
		if err != nil {
			s.cfg.Log.Warn("Booking references missing slot", "id", id, "slot_id", booking.SlotID, "error", err)
			return
		}
		detail.Slot = slot
	}()

	go func() {
		defer wg.Done()
		user, err := s.userRepo.FindByID(ctx, booking.UserID)
		if err != nil {
			s.cfg.Log.Warn("Booking references missing user", "id", id, "user_id", booking.UserID, "error", err)
			return
		}
		detail.User = user
	}()

	wg.Wait()
	return detail, nil
}

func (s *bookingService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) ActiveForUser(ctx context.Context, userID int64) ([]*model.Booking, error) {
	if userID == 0 {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	bookings, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to list active bookings", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}

	return bookings, nil
}

func (s *bookingService) ReconcileHolds(ctx context.Context) error {
	held, err := s.repo.FindHeld(ctx)
	if err != nil {
		return apperrors.Internal("Failed to load held bookings", err)
	}

	now := s.now()
	rearmed, expired := 0, 0

	for _, booking := range held {
		if booking.HoldExpiresAt.After(now) {
			s.holds.ArmAt(booking.ID, booking.HoldExpiresAt)
			rearmed++
			continue
		}
		s.ExpireHold(ctx, booking.ID)
		expired++
	}

	s.cfg.Log.Info("Hold reconciliation completed", "rearmed", rearmed, "expired", expired)
	return nil
}

// --- Helpers ---

func (s *bookingService) sanitizeIntake(intake *model.Intake) {
	intake.Story = sanitizer.SanitizeText(intake.Story)
	intake.Participants = sanitizer.SanitizeText(intake.Participants)
	intake.Photos = sanitizer.SanitizeSlice(intake.Photos, sanitizer.SanitizeText)
	intake.Questions = sanitizer.SanitizeSlice(intake.Questions, sanitizer.SanitizeText)
	if intake.Phone != "" {
		intake.Phone = sanitizer.NormalizePhone(intake.Phone)
	}
}

func (s *bookingService) translateTransitionErr(err error, id string, stateChangedMsg string) error {
	if errors.Is(err, bookingserrors.ErrStateChanged) {
		return apperrors.StateChanged(stateChangedMsg)
	}
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", id)
	}
	if errors.Is(err, bookingserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	return apperrors.Internal("Failed to update booking", err)
}

// releaseSlot frees a slot after a terminal transition. Failures are logged,
// not returned: the booking is already terminal and the unlock flow can
// self-heal a stuck slot later.
func (s *bookingService) releaseSlot(ctx context.Context, slotID string) {
	if err := s.slotRepo.Release(ctx, slotID); err != nil {
		s.cfg.Log.Error("Failed to release slot", "slot_id", slotID, "error", err)
	}
}

func (s *bookingService) notifyUser(ctx context.Context, userID int64, event string, payload notify.BookingEvent) {
	if err := s.notifier.NotifyUser(ctx, userID, event, payload); err != nil {
		s.cfg.Log.Warn("Failed to notify user", "user_id", userID, "event", event, "error", err)
	}
}

func (s *bookingService) editAdmin(ctx context.Context, booking *model.Booking, event string, reason string) {
	if booking.AdminMsgRef == "" {
		return
	}
	if err := s.notifier.EditAdmin(ctx, booking.AdminMsgRef, event, s.event(booking, nil, reason)); err != nil {
		s.cfg.Log.Warn("Failed to edit admin message", "id", booking.ID, "event", event, "error", err)
	}
}

func (s *bookingService) event(booking *model.Booking, slot *model.Slot, reason string) notify.BookingEvent {
	event := notify.BookingEvent{
		BookingID: booking.ID,
		UserID:    booking.UserID,
		Amount:    booking.Amount,
		Status:    string(booking.Status),
		Reason:    reason,
	}
	if slot != nil {
		event.Date = slot.Date
		event.Time = slot.TimeOfDay
	}
	return event
}
