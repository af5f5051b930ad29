package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	bookingserrors "slotbook/internal/bookings/errors"
	"slotbook/internal/bookings/validator"
	"slotbook/internal/notify"
	slotserrors "slotbook/internal/slots/errors"
	"slotbook/pkg/config"
	mongotx "slotbook/pkg/db/mongo"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"
)

// Mock repositories for testing
type mockBookingRepository struct {
	createFunc             func(ctx context.Context, booking *model.Booking) error
	findByIDFunc           func(ctx context.Context, id string) (*model.Booking, error)
	findAllFunc            func(ctx context.Context, limit int, offset int64) ([]*model.Booking, error)
	countFunc              func(ctx context.Context) (int64, error)
	findActiveByUserFunc   func(ctx context.Context, userID int64) ([]*model.Booking, error)
	findActiveBySlotFunc   func(ctx context.Context, slotID string) (*model.Booking, error)
	findHeldFunc           func(ctx context.Context) ([]*model.Booking, error)
	updateStatusFunc       func(ctx context.Context, id string, to model.BookingStatus, from ...model.BookingStatus) error
	setAdminMessageRefFunc func(ctx context.Context, id string, messageRef string) error
}

func (m *mockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, booking)
	}
	booking.ID = "64b000000000000000000001"
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockBookingRepository) FindActiveByUser(ctx context.Context, userID int64) ([]*model.Booking, error) {
	if m.findActiveByUserFunc != nil {
		return m.findActiveByUserFunc(ctx, userID)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) FindActiveBySlot(ctx context.Context, slotID string) (*model.Booking, error) {
	if m.findActiveBySlotFunc != nil {
		return m.findActiveBySlotFunc(ctx, slotID)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindHeld(ctx context.Context) ([]*model.Booking, error) {
	if m.findHeldFunc != nil {
		return m.findHeldFunc(ctx)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) UpdateStatus(ctx context.Context, id string, to model.BookingStatus, from ...model.BookingStatus) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, to, from...)
	}
	return nil
}

func (m *mockBookingRepository) SetAdminMessageRef(ctx context.Context, id string, messageRef string) error {
	if m.setAdminMessageRefFunc != nil {
		return m.setAdminMessageRefFunc(ctx, id, messageRef)
	}
	return nil
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockSlotRepository struct {
	findByIDFunc       func(ctx context.Context, id string) (*model.Slot, error)
	findByDateTimeFunc func(ctx context.Context, date, timeOfDay string) (*model.Slot, error)
	claimFunc          func(ctx context.Context, id string) error
	releaseFunc        func(ctx context.Context, id string) error
}

func (m *mockSlotRepository) EnsureIndexes(ctx context.Context) error { return nil }

func (m *mockSlotRepository) Create(ctx context.Context, slot *model.Slot) error { return nil }

func (m *mockSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, slotserrors.ErrNotFound
}

func (m *mockSlotRepository) FindByDateTime(ctx context.Context, date, timeOfDay string) (*model.Slot, error) {
	if m.findByDateTimeFunc != nil {
		return m.findByDateTimeFunc(ctx, date, timeOfDay)
	}
	return nil, slotserrors.ErrNotFound
}

func (m *mockSlotRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Slot, error) {
	return []*model.Slot{}, nil
}

func (m *mockSlotRepository) Count(ctx context.Context) (int64, error) { return 0, nil }

func (m *mockSlotRepository) Claim(ctx context.Context, id string) error {
	if m.claimFunc != nil {
		return m.claimFunc(ctx, id)
	}
	return nil
}

func (m *mockSlotRepository) Release(ctx context.Context, id string) error {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, id)
	}
	return nil
}

func (m *mockSlotRepository) DeleteFree(ctx context.Context, id string) error { return nil }

func (m *mockSlotRepository) FreeDates(ctx context.Context, fromDate string) ([]string, error) {
	return []string{}, nil
}

func (m *mockSlotRepository) FreeTimes(ctx context.Context, date string) ([]string, error) {
	return []string{}, nil
}

func (m *mockSlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockUserRepository struct {
	upsertFunc func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepository) Upsert(ctx context.Context, user *model.User) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return &model.User{ID: id}, nil
}

type mockPriceSource struct {
	getPriceFunc func(ctx context.Context) (int64, error)
}

func (m *mockPriceSource) GetPrice(ctx context.Context) (int64, error) {
	if m.getPriceFunc != nil {
		return m.getPriceFunc(ctx)
	}
	return 100, nil
}

type mockNotifier struct {
	notifyUserFunc  func(ctx context.Context, userID int64, event string, payload any) error
	notifyAdminFunc func(ctx context.Context, event string, payload any) (string, error)
	editAdminFunc   func(ctx context.Context, messageRef string, event string, payload any) error
}

func (m *mockNotifier) NotifyUser(ctx context.Context, userID int64, event string, payload any) error {
	if m.notifyUserFunc != nil {
		return m.notifyUserFunc(ctx, userID, event, payload)
	}
	return nil
}

func (m *mockNotifier) NotifyAdmin(ctx context.Context, event string, payload any) (string, error) {
	if m.notifyAdminFunc != nil {
		return m.notifyAdminFunc(ctx, event, payload)
	}
	return "msg-ref-1", nil
}

func (m *mockNotifier) EditAdmin(ctx context.Context, messageRef string, event string, payload any) error {
	if m.editAdminFunc != nil {
		return m.editAdminFunc(ctx, messageRef, event, payload)
	}
	return nil
}

func (m *mockNotifier) SetAdminChat(chatID int64) {}

type mockHolds struct {
	armAtFunc  func(bookingID string, deadline time.Time)
	disarmFunc func(bookingID string) bool
}

func (m *mockHolds) ArmAt(bookingID string, deadline time.Time) {
	if m.armAtFunc != nil {
		m.armAtFunc(bookingID, deadline)
	}
}

func (m *mockHolds) Disarm(bookingID string) bool {
	if m.disarmFunc != nil {
		return m.disarmFunc(bookingID)
	}
	return true
}

func testConfig() *config.Config {
	log := logger.New(logger.Config{
		Level:   "error",
		Format:  logger.JSON,
		Service: "test",
	})

	return &config.Config{
		Log:             log,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		PaymentHoldTTL:  15 * time.Minute,
		MaxIntakePhotos: 10,
		DefaultPrice:    350,
	}
}

func newTestService(
	repo *mockBookingRepository,
	slotRepo *mockSlotRepository,
	userRepo *mockUserRepository,
	prices *mockPriceSource,
	notifier *mockNotifier,
	holds *mockHolds,
) *bookingService {
	cfg := testConfig()
	return &bookingService{
		repo:      repo,
		slotRepo:  slotRepo,
		userRepo:  userRepo,
		prices:    prices,
		notifier:  notifier,
		holds:     holds,
		validator: validator.NewBookingValidator(cfg.MaxIntakePhotos, cfg.Log),
		cfg:       cfg,
		now:       time.Now,
	}
}

func validIntake() *model.Intake {
	return &model.Intake{
		Story:        "A story about the two of us",
		Participants: "Alice and Bob",
		Photos:       []string{"photo-1", "photo-2"},
		Questions:    []string{"q one", "q two", "q three"},
	}
}

func TestReserve_Success(t *testing.T) {
	var claimedSlotID string
	var armedID string
	var armedDeadline time.Time
	var notifiedEvent string
	var transitionTo model.BookingStatus
	var transitionFrom []model.BookingStatus

	repo := &mockBookingRepository{
		updateStatusFunc: func(ctx context.Context, id string, to model.BookingStatus, from ...model.BookingStatus) error {
			transitionTo = to
			transitionFrom = from
			return nil
		},
	}
	slotRepo := &mockSlotRepository{
		findByDateTimeFunc: func(ctx context.Context, date, timeOfDay string) (*model.Slot, error) {
			return &model.Slot{ID: "64b000000000000000000099", Date: date, TimeOfDay: timeOfDay}, nil
		},
		claimFunc: func(ctx context.Context, id string) error {
			claimedSlotID = id
			return nil
		},
	}
	holds := &mockHolds{
		armAtFunc: func(bookingID string, deadline time.Time) {
			armedID = bookingID
			armedDeadline = deadline
		},
	}
	notifier := &mockNotifier{
		notifyUserFunc: func(ctx context.Context, userID int64, event string, payload any) error {
			notifiedEvent = event
			return nil
		},
	}

	service := newTestService(repo, slotRepo, &mockUserRepository{}, &mockPriceSource{}, notifier, holds)

	start := time.Now()
	booking, err := service.Reserve(context.Background(),
		&model.User{ID: 42, Username: "alice"},
		"2026-09-15", "14:00",
		validIntake(),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if claimedSlotID != "64b000000000000000000099" {
		t.Errorf("expected slot claim, got %q", claimedSlotID)
	}
	if booking.Amount != 300 {
		t.Errorf("expected amount 300 (3 questions x 100), got %d", booking.Amount)
	}
	if booking.NumQuestions != 3 {
		t.Errorf("expected 3 questions, got %d", booking.NumQuestions)
	}
	if booking.Status != model.StatusWaitingPayment {
		t.Errorf("expected status %s, got %s", model.StatusWaitingPayment, booking.Status)
	}
	if transitionTo != model.StatusWaitingPayment || len(transitionFrom) != 1 || transitionFrom[0] != model.StatusCreated {
		t.Errorf("expected transition CREATED -> WAITING_PAYMENT, got %v -> %v", transitionFrom, transitionTo)
	}
	if armedID != booking.ID {
		t.Errorf("expected hold armed for %q, got %q", booking.ID, armedID)
	}
	if !armedDeadline.Equal(booking.HoldExpiresAt) {
		t.Errorf("hold deadline %v does not match booking %v", armedDeadline, booking.HoldExpiresAt)
	}
	wantDeadline := start.Add(15 * time.Minute)
	if booking.HoldExpiresAt.Before(wantDeadline.Add(-time.Second)) || booking.HoldExpiresAt.After(wantDeadline.Add(time.Second)) {
		t.Errorf("hold deadline %v not about 15m from now", booking.HoldExpiresAt)
	}
	if notifiedEvent != notify.EventBookingReserved {
		t.Errorf("expected event %s, got %s", notify.EventBookingReserved, notifiedEvent)
	}
}

func TestReserve_SlotClaimLost(t *testing.T) {
	created := false
	armed := false

	repo := &mockBookingRepository{
		createFunc: func(ctx context.Context, booking *model.Booking) error {
			created = true
			return nil
		},
	}
	slotRepo := &mockSlotRepository{
		findByDateTimeFunc: func(ctx context.Context, date, timeOfDay string) (*model.Slot, error) {
			return &model.Slot{ID: "64b000000000000000000099"}, nil
		},
		claimFunc: func(ctx context.Context, id string) error {
			return slotserrors.ErrSlotUnavailable
		},
	}
	holds := &mockHolds{
		armAtFunc: func(bookingID string, deadline time.Time) { armed = true },
	}

	service := newTestService(repo, slotRepo, &mockUserRepository{}, &mockPriceSource{}, &mockNotifier{}, holds)

	_, err := service.Reserve(context.Background(), &model.User{ID: 42}, "2026-09-15", "14:00", validIntake())
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if created {
		t.Error("booking must not be created when the claim is lost")
	}
	if armed {
		t.Error("hold must not be armed when the claim is lost")
	}
}

func TestReserve_ConcurrentClaimsOneWinner(t *testing.T) {
	const workers = 16

	// The fake claim mirrors the conditional update in the slots repository:
	// only the first caller flips the flag, everyone else loses.
	var slotMu sync.Mutex
	taken := false

	slotRepo := &mockSlotRepository{
		findByDateTimeFunc: func(ctx context.Context, date, timeOfDay string) (*model.Slot, error) {
			// Stale read on purpose: every worker sees the slot as free, so
			// exclusion must come from the claim alone.
			return &model.Slot{ID: "64b000000000000000000099", Date: date, TimeOfDay: timeOfDay}, nil
		},
		claimFunc: func(ctx context.Context, id string) error {
			slotMu.Lock()
			defer slotMu.Unlock()
			if taken {
				return slotserrors.ErrSlotUnavailable
			}
			taken = true
			return nil
		},
	}

	var createMu sync.Mutex
	created := 0
	repo := &mockBookingRepository{
		createFunc: func(ctx context.Context, booking *model.Booking) error {
			createMu.Lock()
			defer createMu.Unlock()
			created++
			booking.ID = fmt.Sprintf("64b0000000000000000000%02d", created)
			return nil
		},
	}

	var armMu sync.Mutex
	armed := 0
	holds := &mockHolds{
		armAtFunc: func(bookingID string, deadline time.Time) {
			armMu.Lock()
			defer armMu.Unlock()
			armed++
		},
	}

	service := newTestService(repo, slotRepo, &mockUserRepository{}, &mockPriceSource{}, &mockNotifier{}, holds)

	var wg sync.WaitGroup
	results := make(chan error, workers)

	// Run with -race flag to detect unsynchronized claim state
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := service.Reserve(context.Background(), &model.User{ID: userID}, "2026-09-15", "14:00", validIntake())
			results <- err
		}(int64(i + 1))
	}
	wg.Wait()
	close(results)

	successes, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case apperrors.IsCode(err, apperrors.CodeConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("expected exactly 1 successful reserve, got %d", successes)
	}
	if conflicts != workers-1 {
		t.Errorf("expected %d conflicts, got %d", workers-1, conflicts)
	}
	if created != 1 {
		t.Errorf("expected exactly 1 booking created, got %d", created)
	}
	if armed != 1 {
		t.Errorf("expected exactly 1 hold armed, got %d", armed)
	}
}

func TestReserve_PriceChangeNeverAltersAmount(t *testing.T) {
	var priceMu sync.Mutex
	price := int64(100)

	prices := &mockPriceSource{
		getPriceFunc: func(ctx context.Context) (int64, error) {
			priceMu.Lock()
			defer priceMu.Unlock()
			return price, nil
		},
	}

	var stored *model.Booking
	repo := &mockBookingRepository{
		createFunc: func(ctx context.Context, booking *model.Booking) error {
			booking.ID = "64b000000000000000000001"
			stored = booking
			return nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return stored, nil
		},
	}
	slotRepo := &mockSlotRepository{
		findByDateTimeFunc: func(ctx context.Context, date, timeOfDay string) (*model.Slot, error) {
			return &model.Slot{ID: "64b000000000000000000099", Date: date, TimeOfDay: timeOfDay}, nil
		},
	}

	service := newTestService(repo, slotRepo, &mockUserRepository{}, prices, &mockNotifier{}, &mockHolds{})

	booking, err := service.Reserve(context.Background(), &model.User{ID: 42}, "2026-09-15", "14:00", validIntake())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Amount != 300 {
		t.Fatalf("expected amount 300 at the original price, got %d", booking.Amount)
	}

	priceMu.Lock()
	price = 999
	priceMu.Unlock()

	reread, err := service.GetByID(context.Background(), booking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reread.Amount != 300 {
		t.Errorf("expected frozen amount 300 after price change, got %d", reread.Amount)
	}
	if stored.Amount != 300 {
		t.Errorf("expected stored amount untouched, got %d", stored.Amount)
	}
}

func TestReserve_ActiveBookingExists(t *testing.T) {
	repo := &mockBookingRepository{
		findActiveByUserFunc: func(ctx context.Context, userID int64) ([]*model.Booking, error) {
			return []*model.Booking{{ID: "64b000000000000000000001", Status: model.StatusWaitingPayment}}, nil
		},
	}

	service := newTestService(repo, &mockSlotRepository{}, &mockUserRepository{}, &mockPriceSource{}, &mockNotifier{}, &mockHolds{})

	_, err := service.Reserve(context.Background(), &model.User{ID: 42}, "2026-09-15", "14:00", validIntake())
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CONFLICT for second active booking, got %v", err)
	}
}

func TestReserve_SlotAlreadyTaken(t *testing.T) {
	slotRepo := &mockSlotRepository{
		findByDateTimeFunc: func(ctx context.Context, date, timeOfDay string) (*model.Slot, error) {
			return &model.Slot{ID: "64b000000000000000000099", Taken: true}, nil
		},
	}

	service := newTestService(&mockBookingRepository{}, slotRepo, &mockUserRepository{}, &mockPriceSource{}, &mockNotifier{}, &mockHolds{})

	_, err := service.Reserve(context.Background(), &model.User{ID: 42}, "2026-09-15", "14:00", validIntake())
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CONFLICT for taken slot, got %v", err)
	}
}

func TestReserve_InvalidIntake(t *testing.T) {
	service := newTestService(&mockBookingRepository{}, &mockSlotRepository{}, &mockUserRepository{}, &mockPriceSource{}, &mockNotifier{}, &mockHolds{})

	intake := validIntake()
	intake.Questions = nil

	_, err := service.Reserve(context.Background(), &model.User{ID: 42}, "2026-09-15", "14:00", intake)
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestSubmitReceipt_WrongUser(t *testing.T) {
	transitioned := false

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, UserID: 42, Status: model.StatusWaitingPayment}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, to model.BookingStatus, from ...model.BookingStatus) error {
			transitioned = true
			return nil
		},
	}

	service := newTestService(repo, &mockSlotRepository{}, &mockUserRepository{}, &mockPriceSource{}, &mockNotifier{}, &mockHolds{})

	err := service.SubmitReceipt(context.Background(), "64b000000000000000000001", 99, "receipt-1")
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
	if transitioned {
		t.Error("status must not change for another user's booking")
	}
}

func TestSubmitReceipt_AfterHoldFired(t *testing.T) {
	disarmed := false

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, UserID: 42, Status: model.StatusCancelled}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, to model.BookingStatus, from ...model.BookingStatus) error {
			return bookingserrors.ErrStateChanged
		},
	}
	holds := &mockHolds{
		disarmFunc: func(bookingID string) bool {
			disarmed = true
			return false
		},
	}

	service := newTestService(repo, &mockSlotRepository{}, &mockUserRepository{}, &mockPriceSource{}, &mockNotifier{}, holds)

	err := service.SubmitReceipt(context.Background(), "64b000000000000000000001", 42, "receipt-1")
	if !apperrors.IsCode(err, apperrors.CodeStateChanged) {
		t.Fatalf("expected STATE_CHANGED when the hold won the race, got %v", err)
	}
	if disarmed {
		t.Error("a failed transition must not touch the hold")
	}
}

func TestSubmitReceipt_Success(t *testing.T) {
	var transitionTo model.BookingStatus
	var transitionFrom []model.BookingStatus
	var storedRef string
	disarmed := false
	adminNotified := false

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, UserID: 42, Status: model.StatusWaitingPayment}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, to model.BookingStatus, from ...model.BookingStatus) error {
			transitionTo = to
			transitionFrom = from
			return nil
		},
		setAdminMessageRefFunc: func(ctx context.Context, id string, messageRef string) error {
			storedRef = messageRef
			return nil
		},
	}
	holds := &mockHolds{
		disarmFunc: func(bookingID string) bool {
			disarmed = true
			return true
		},
	}
	notifier := &mockNotifier{
		notifyAdminFunc: func(ctx context.Context, event string, payload any) (string, error) {
			adminNotified = true
			if event != notify.EventReceiptSubmitted {
				t.Errorf("expected event %s, got %s", notify.EventReceiptSubmitted, event)
			}
			return "admin-msg-7", nil
		},
	}

	service := newTestService(repo, &mockSlotRepository{}, &mockUserRepository{}, &mockPriceSource{}, notifier, holds)

	if err := service.SubmitReceipt(context.Background(), "64b000000000000000000001", 42, "receipt-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if transitionTo != model.StatusChecking {
		t.Errorf("expected transition to CHECKING, got %s", transitionTo)
	}
	if len(transitionFrom) != 2 {
		t.Errorf("expected transition allowed from CREATED and WAITING_PAYMENT, got %v", transitionFrom)
	}
	if !disarmed {
		t.Error("hold must be disarmed once the receipt lands")
	}
	if !adminNotified {
		t.Error("admin must be notified of the submitted receipt")
	}
	if storedRef != "admin-msg-7" {
		t.Errorf("expected admin message ref stored, got %q", storedRef)
	}
}

func TestApprove_OnlyFromChecking(t *testing.T) {
	repo := &mockBookingRepository{
		updateStatusFunc: func(ctx context.Context, id string, to model.BookingStatus, from ...model.BookingStatus) error {
			if to != model.StatusConfirmed || len(from) != 1 || from[0] != model.StatusChecking {
				t.Errorf("expected CHECKING -> CONFIRMED, got %v -> %v", from, to)
			}
			return bookingserrors.ErrStateChanged
		},
	}

	service := newTestService(repo, &mockSlotRepository{}, &mockUserRepository{}, &mockPriceSource{}, &mockNotifier{}, &mockHolds{})

	err := service.Approve(context.Background(), "64b000000000000000000001")
	if !apperrors.IsCode(err, apperrors.CodeStateChanged) {
		t.Fatalf("expected STATE_CHANGED, got %v", err)
	}
}

func TestApprove_Success(t *testing.T) {
	var userEvent string
	var editedRef string

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, UserID: 42, Status: model.StatusConfirmed, AdminMsgRef: "admin-msg-7"}, nil
		},
	}
	notifier := &mockNotifier{
		notifyUserFunc: func(ctx context.Context, userID int64, event string, payload any) error {
			userEvent = event
			return nil
		},
		editAdminFunc: func(ctx context.Context, messageRef string, event string, payload any) error {
			editedRef = messageRef
			return nil
		},
	}

	service := newTestService(repo, &mockSlotRepository{}, &mockUserRepository{}, &mockPriceSource{}, notifier, &mockHolds{})

	if err := service.Approve(context.Background(), "64b000000000000000000001"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userEvent != notify.EventBookingApproved {
		t.Errorf("expected event %s, got %s", notify.EventBookingApproved, userEvent)
	}
	if editedRef != "admin-msg-7" {
		t.Errorf("expected admin review card edited, got %q", editedRef)
	}
}

func TestReject_ReleasesSlot(t *testing.T) {
	var releasedSlotID string
	var userEvent string

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, UserID: 42, SlotID: "64b000000000000000000099", Status: model.StatusChecking}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, to model.BookingStatus, from ...model.BookingStatus) error {
			if to != model.StatusRejected || len(from) != 1 || from[0] != model.StatusChecking {
				t.Errorf("expected CHECKING -> REJECTED, got %v -> %v", from, to)
			}
			return nil
		},
	}
	slotRepo := &mockSlotRepository{
		releaseFunc: func(ctx context.Context, id string) error {
			releasedSlotID = id
			return nil
		},
	}
	notifier := &mockNotifier{
		notifyUserFunc: func(ctx context.Context, userID int64, event string, payload any) error {
			userEvent = event
			return nil
		},
	}

	service := newTestService(repo, slotRepo, &mockUserRepository{}, &mockPriceSource{}, notifier, &mockHolds{})

	if err := service.Reject(context.Background(), "64b000000000000000000001", "receipt unreadable"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if releasedSlotID != "64b000000000000000000099" {
		t.Errorf("expected slot released, got %q", releasedSlotID)
	}
	if userEvent != notify.EventBookingRejected {
		t.Errorf("expected event %s, got %s", notify.EventBookingRejected, userEvent)
	}
}

func TestCancel_NotifiesOppositeParty(t *testing.T) {
	tests := []struct {
		name        string
		actor       model.Actor
		wantUserMsg bool
	}{
		{name: "user cancellation goes to admin", actor: model.ActorUser, wantUserMsg: false},
		{name: "admin cancellation goes to user", actor: model.ActorAdmin, wantUserMsg: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userNotified := false
			adminNotified := false
			released := false
			disarmed := false

			repo := &mockBookingRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
					return &model.Booking{ID: id, UserID: 42, SlotID: "64b000000000000000000099", Status: model.StatusWaitingPayment}, nil
				},
			}
			slotRepo := &mockSlotRepository{
				releaseFunc: func(ctx context.Context, id string) error {
					released = true
					return nil
				},
			}
			holds := &mockHolds{
				disarmFunc: func(bookingID string) bool {
					disarmed = true
					return true
				},
			}
			notifier := &mockNotifier{
				notifyUserFunc: func(ctx context.Context, userID int64, event string, payload any) error {
					userNotified = true
					return nil
				},
				notifyAdminFunc: func(ctx context.Context, event string, payload any) (string, error) {
					adminNotified = true
					return "", nil
				},
			}

			service := newTestService(repo, slotRepo, &mockUserRepository{}, &mockPriceSource{}, notifier, holds)

			if err := service.Cancel(context.Background(), "64b000000000000000000001", tt.actor); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !released {
				t.Error("slot must be released on cancellation")
			}
			if !disarmed {
				t.Error("hold must be disarmed on cancellation")
			}
			if userNotified != tt.wantUserMsg {
				t.Errorf("user notified = %v, want %v", userNotified, tt.wantUserMsg)
			}
			if adminNotified == tt.wantUserMsg {
				t.Errorf("admin notified = %v, want %v", adminNotified, !tt.wantUserMsg)
			}
		})
	}
}

func TestExpireHold_StateChanged(t *testing.T) {
	released := false
	notified := false

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, UserID: 42, SlotID: "64b000000000000000000099", Status: model.StatusChecking}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, to model.BookingStatus, from ...model.BookingStatus) error {
			return bookingserrors.ErrStateChanged
		},
	}
	slotRepo := &mockSlotRepository{
		releaseFunc: func(ctx context.Context, id string) error {
			released = true
			return nil
		},
	}
	notifier := &mockNotifier{
		notifyUserFunc: func(ctx context.Context, userID int64, event string, payload any) error {
			notified = true
			return nil
		},
	}

	service := newTestService(repo, slotRepo, &mockUserRepository{}, &mockPriceSource{}, notifier, &mockHolds{})

	service.ExpireHold(context.Background(), "64b000000000000000000001")

	if released {
		t.Error("slot must stay taken when the receipt won the race")
	}
	if notified {
		t.Error("no expiry notification when the receipt won the race")
	}
}

func TestExpireHold_CancelsAndReleases(t *testing.T) {
	var transitionTo model.BookingStatus
	var releasedSlotID string
	var userEvent string

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, UserID: 42, SlotID: "64b000000000000000000099", Status: model.StatusWaitingPayment}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, to model.BookingStatus, from ...model.BookingStatus) error {
			transitionTo = to
			return nil
		},
	}
	slotRepo := &mockSlotRepository{
		releaseFunc: func(ctx context.Context, id string) error {
			releasedSlotID = id
			return nil
		},
	}
	notifier := &mockNotifier{
		notifyUserFunc: func(ctx context.Context, userID int64, event string, payload any) error {
			userEvent = event
			return nil
		},
	}

	service := newTestService(repo, slotRepo, &mockUserRepository{}, &mockPriceSource{}, notifier, &mockHolds{})

	service.ExpireHold(context.Background(), "64b000000000000000000001")

	if transitionTo != model.StatusCancelled {
		t.Errorf("expected transition to CANCELLED, got %s", transitionTo)
	}
	if releasedSlotID != "64b000000000000000000099" {
		t.Errorf("expected slot released, got %q", releasedSlotID)
	}
	if userEvent != notify.EventHoldExpired {
		t.Errorf("expected event %s, got %s", notify.EventHoldExpired, userEvent)
	}
}

func TestUnlockSlot_Outcomes(t *testing.T) {
	tests := []struct {
		name          string
		slotTaken     bool
		bookingStatus model.BookingStatus
		noBooking     bool
		wantOutcome   model.UnlockOutcome
		wantStatus    model.BookingStatus
	}{
		{name: "free slot", slotTaken: false, wantOutcome: model.UnlockAlreadyFree},
		{name: "stale slot", slotTaken: true, noBooking: true, wantOutcome: model.UnlockReleasedStale},
		{name: "unpaid booking", slotTaken: true, bookingStatus: model.StatusWaitingPayment, wantOutcome: model.UnlockCancelledUnpaid, wantStatus: model.StatusCancelled},
		{name: "booking under review", slotTaken: true, bookingStatus: model.StatusChecking, wantOutcome: model.UnlockRejectedUnverified, wantStatus: model.StatusRejected},
		{name: "confirmed booking", slotTaken: true, bookingStatus: model.StatusConfirmed, wantOutcome: model.UnlockCancelledConfirmed, wantStatus: model.StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var transitionTo model.BookingStatus
			released := false

			repo := &mockBookingRepository{
				findActiveBySlotFunc: func(ctx context.Context, slotID string) (*model.Booking, error) {
					if tt.noBooking {
						return nil, bookingserrors.ErrNotFound
					}
					return &model.Booking{ID: "64b000000000000000000001", UserID: 42, SlotID: slotID, Status: tt.bookingStatus}, nil
				},
				updateStatusFunc: func(ctx context.Context, id string, to model.BookingStatus, from ...model.BookingStatus) error {
					transitionTo = to
					return nil
				},
			}
			slotRepo := &mockSlotRepository{
				findByDateTimeFunc: func(ctx context.Context, date, timeOfDay string) (*model.Slot, error) {
					return &model.Slot{ID: "64b000000000000000000099", Date: date, TimeOfDay: timeOfDay, Taken: tt.slotTaken}, nil
				},
				releaseFunc: func(ctx context.Context, id string) error {
					released = true
					return nil
				},
			}

			service := newTestService(repo, slotRepo, &mockUserRepository{}, &mockPriceSource{}, &mockNotifier{}, &mockHolds{})

			outcome, err := service.UnlockSlot(context.Background(), "2026-09-15", "14:00")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if outcome != tt.wantOutcome {
				t.Errorf("expected outcome %s, got %s", tt.wantOutcome, outcome)
			}
			if tt.wantStatus != "" && transitionTo != tt.wantStatus {
				t.Errorf("expected booking moved to %s, got %s", tt.wantStatus, transitionTo)
			}
			wantRelease := tt.slotTaken
			if released != wantRelease {
				t.Errorf("released = %v, want %v", released, wantRelease)
			}
		})
	}
}

func TestReconcileHolds(t *testing.T) {
	future := time.Now().Add(10 * time.Minute)
	past := time.Now().Add(-10 * time.Minute)

	var armed []string
	var cancelled []string

	repo := &mockBookingRepository{
		findHeldFunc: func(ctx context.Context) ([]*model.Booking, error) {
			return []*model.Booking{
				{ID: "64b000000000000000000001", UserID: 1, SlotID: "64b000000000000000000091", Status: model.StatusWaitingPayment, HoldExpiresAt: future},
				{ID: "64b000000000000000000002", UserID: 2, SlotID: "64b000000000000000000092", Status: model.StatusWaitingPayment, HoldExpiresAt: past},
			}, nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, UserID: 2, SlotID: "64b000000000000000000092", Status: model.StatusWaitingPayment}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, to model.BookingStatus, from ...model.BookingStatus) error {
			cancelled = append(cancelled, id)
			return nil
		},
	}
	holds := &mockHolds{
		armAtFunc: func(bookingID string, deadline time.Time) {
			armed = append(armed, bookingID)
		},
	}

	service := newTestService(repo, &mockSlotRepository{}, &mockUserRepository{}, &mockPriceSource{}, &mockNotifier{}, holds)

	if err := service.ReconcileHolds(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(armed) != 1 || armed[0] != "64b000000000000000000001" {
		t.Errorf("expected the future hold re-armed, got %v", armed)
	}
	if len(cancelled) != 1 || cancelled[0] != "64b000000000000000000002" {
		t.Errorf("expected the overdue hold expired, got %v", cancelled)
	}
}

func TestGetAll_RaceCondition(t *testing.T) {
	repo := &mockBookingRepository{
		countFunc: func(ctx context.Context) (int64, error) {
			time.Sleep(10 * time.Millisecond)
			return 7, nil
		},
		findAllFunc: func(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
			time.Sleep(10 * time.Millisecond)
			return []*model.Booking{{ID: "64b000000000000000000001"}}, nil
		},
	}

	service := newTestService(repo, &mockSlotRepository{}, &mockUserRepository{}, &mockPriceSource{}, &mockNotifier{}, &mockHolds{})

	// Run with -race flag to detect unsynchronized writes
	for i := 0; i < 20; i++ {
		bookings, count, err := service.GetAll(context.Background(), 10, 0)
		if err != nil {
			t.Fatalf("iteration %d: unexpected error: %v", i, err)
		}
		if count != 7 {
			t.Errorf("iteration %d: expected count 7, got %d", i, count)
		}
		if len(bookings) != 1 {
			t.Errorf("iteration %d: expected 1 booking, got %d", i, len(bookings))
		}
	}
}
