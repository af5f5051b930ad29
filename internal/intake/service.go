package intake

import (
	"context"
	"slices"
	"strings"

	bookingsvc "slotbook/internal/bookings/service"
	slotsvc "slotbook/internal/slots/service"
	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/model"
	"slotbook/pkg/sanitizer"
)

// Input is one user turn in the intake dialogue: free text, a photo batch,
// or both, depending on the current step.
type Input struct {
	Text   string   `json:"text,omitempty"`
	Photos []string `json:"photos,omitempty"`
}

// Reply tells the gateway what to render next: the session position plus any
// step-specific data (choices to offer, the created booking).
type Reply struct {
	Session *model.Session `json:"session"`
	Choices []string       `json:"choices,omitempty"`
	Booking *model.Booking `json:"booking,omitempty"`
}

// SkipKeyword lets the user decline the optional phone step.
const SkipKeyword = "skip"

type Service interface {
	Start(ctx context.Context, user *model.User) (*Reply, error)
	Advance(ctx context.Context, userID int64, input *Input) (*Reply, error)
	Get(ctx context.Context, userID int64) (*model.Session, error)
	Cancel(ctx context.Context, userID int64) error
}

type intakeService struct {
	store    SessionStore
	slots    slotsvc.SlotService
	bookings bookingsvc.BookingService
	cfg      *config.Config
}

func NewService(
	store SessionStore,
	slots slotsvc.SlotService,
	bookings bookingsvc.BookingService,
	cfg *config.Config,
) Service {
	return &intakeService{
		store:    store,
		slots:    slots,
		bookings: bookings,
		cfg:      cfg,
	}
}

// Start opens a fresh dialogue, replacing any stale one. Users with an active
// booking are turned away before collecting anything.
func (s *intakeService) Start(ctx context.Context, user *model.User) (*Reply, error) {
	if user == nil || user.ID == 0 {
		return nil, apperrors.InvalidInput("User is required")
	}

	active, err := s.bookings.ActiveForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return nil, apperrors.Conflict("You already have an active booking")
	}

	session := &model.Session{
		UserID:   user.ID,
		Username: user.Username,
		Name:     user.Name,
		Step:     model.StepStory,
	}
	s.store.Put(session)

	s.cfg.Log.Info("Intake session started", "user_id", user.ID)
	return &Reply{Session: session}, nil
}

func (s *intakeService) Advance(ctx context.Context, userID int64, input *Input) (*Reply, error) {
	session, ok := s.store.Get(userID)
	if !ok {
		return nil, apperrors.NotFound("Intake session")
	}

	switch session.Step {
	case model.StepStory:
		return s.collectStory(session, input)
	case model.StepParticipants:
		return s.collectParticipants(session, input)
	case model.StepPhotos:
		return s.collectPhotos(session, input)
	case model.StepQuestions:
		return s.collectQuestions(session, input)
	case model.StepPhone:
		return s.collectPhone(ctx, session, input)
	case model.StepSelectDate:
		return s.selectDate(ctx, session, input)
	case model.StepSelectTime:
		return s.selectTime(ctx, session, input)
	case model.StepReceipt:
		return s.submitReceipt(ctx, session, input)
	default:
		return nil, apperrors.Conflict("Intake session is already complete")
	}
}

func (s *intakeService) Get(_ context.Context, userID int64) (*model.Session, error) {
	session, ok := s.store.Get(userID)
	if !ok {
		return nil, apperrors.NotFound("Intake session")
	}
	return session, nil
}

// Cancel drops the dialogue. If a booking was already reserved, it is
// cancelled too so the slot does not stay held by an abandoned session.
func (s *intakeService) Cancel(ctx context.Context, userID int64) error {
	session, ok := s.store.Get(userID)
	if !ok {
		return apperrors.NotFound("Intake session")
	}

	if session.BookingID != "" {
		if err := s.bookings.Cancel(ctx, session.BookingID, model.ActorUser); err != nil {
			if !apperrors.IsCode(err, apperrors.CodeStateChanged) && !apperrors.IsCode(err, apperrors.CodeNotFound) {
				return err
			}
		}
	}

	s.store.Delete(userID)
	s.cfg.Log.Info("Intake session cancelled", "user_id", userID)
	return nil
}

// --- Steps ---

func (s *intakeService) collectStory(session *model.Session, input *Input) (*Reply, error) {
	text := sanitizer.SanitizeText(input.Text)
	if text == "" {
		return nil, apperrors.InvalidInput("Please describe your story")
	}

	session.Story = text
	session.Step = model.StepParticipants
	s.store.Put(session)

	return &Reply{Session: session}, nil
}

func (s *intakeService) collectParticipants(session *model.Session, input *Input) (*Reply, error) {
	text := sanitizer.SanitizeText(input.Text)
	if text == "" {
		return nil, apperrors.InvalidInput("Please list the participants")
	}

	session.Participants = text
	session.Step = model.StepPhotos
	s.store.Put(session)

	return &Reply{Session: session}, nil
}

func (s *intakeService) collectPhotos(session *model.Session, input *Input) (*Reply, error) {
	photos := sanitizer.SanitizeSlice(input.Photos, sanitizer.SanitizeText)
	if len(photos) == 0 {
		return nil, apperrors.InvalidInput("Please attach at least one photo")
	}
	if len(photos) > s.cfg.MaxIntakePhotos {
		return nil, apperrors.InvalidInput("Too many photos attached")
	}

	session.Photos = photos
	session.Step = model.StepQuestions
	s.store.Put(session)

	return &Reply{Session: session}, nil
}

func (s *intakeService) collectQuestions(session *model.Session, input *Input) (*Reply, error) {
	// Questions arrive as one message, one question per line. The count
	// drives the price, so empty lines must not inflate it.
	questions := sanitizer.SanitizeSlice(strings.Split(input.Text, "\n"), sanitizer.SanitizeText)
	if len(questions) == 0 {
		return nil, apperrors.InvalidInput("Please send at least one question")
	}

	session.Questions = questions
	session.Step = model.StepPhone
	s.store.Put(session)

	return &Reply{Session: session}, nil
}

func (s *intakeService) collectPhone(ctx context.Context, session *model.Session, input *Input) (*Reply, error) {
	text := strings.TrimSpace(input.Text)

	if !strings.EqualFold(text, SkipKeyword) {
		phone := sanitizer.NormalizePhone(text)
		if phone == "" {
			return nil, apperrors.InvalidInput("Phone number could not be recognized, send it again or reply 'skip'")
		}
		session.Phone = phone
	}

	dates, err := s.slots.FreeDates(ctx)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, apperrors.Conflict("No free dates are available right now")
	}

	session.Step = model.StepSelectDate
	s.store.Put(session)

	return &Reply{Session: session, Choices: dates}, nil
}

func (s *intakeService) selectDate(ctx context.Context, session *model.Session, input *Input) (*Reply, error) {
	date := strings.TrimSpace(input.Text)

	dates, err := s.slots.FreeDates(ctx)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(dates, date) {
		return nil, apperrors.InvalidInput("Please pick one of the offered dates")
	}

	times, err := s.slots.FreeTimes(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, apperrors.Conflict("All times for this date were just taken, pick another date")
	}

	session.SelectedDate = date
	session.Step = model.StepSelectTime
	s.store.Put(session)

	return &Reply{Session: session, Choices: times}, nil
}

func (s *intakeService) selectTime(ctx context.Context, session *model.Session, input *Input) (*Reply, error) {
	timeOfDay := strings.TrimSpace(input.Text)
	if timeOfDay == "" {
		return nil, apperrors.InvalidInput("Please pick one of the offered times")
	}

	user := &model.User{
		ID:       session.UserID,
		Username: session.Username,
		Name:     session.Name,
	}
	intake := &model.Intake{
		Story:        session.Story,
		Participants: session.Participants,
		Photos:       session.Photos,
		Questions:    session.Questions,
		Phone:        session.Phone,
	}

	booking, err := s.bookings.Reserve(ctx, user, session.SelectedDate, timeOfDay, intake)
	if err != nil {
		// A lost race on the slot sends the user back to picking a time.
		if apperrors.IsCode(err, apperrors.CodeConflict) {
			session.Step = model.StepSelectDate
			s.store.Put(session)
		}
		return nil, err
	}

	session.BookingID = booking.ID
	session.Amount = booking.Amount
	session.Step = model.StepReceipt
	s.store.Put(session)

	return &Reply{Session: session, Booking: booking}, nil
}

func (s *intakeService) submitReceipt(ctx context.Context, session *model.Session, input *Input) (*Reply, error) {
	receiptRef := strings.TrimSpace(input.Text)
	if receiptRef == "" && len(input.Photos) > 0 {
		receiptRef = input.Photos[0]
	}
	if receiptRef == "" {
		return nil, apperrors.InvalidInput("Please attach the payment receipt")
	}

	if err := s.bookings.SubmitReceipt(ctx, session.BookingID, session.UserID, receiptRef); err != nil {
		return nil, err
	}

	session.Step = model.StepDone
	s.store.Delete(session.UserID)

	return &Reply{Session: session}, nil
}
