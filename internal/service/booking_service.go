package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"artenis/internal/models"
	"artenis/internal/notifications"
	"artenis/internal/observability"
	"artenis/internal/repository"
	"artenis/internal/validation"
)

const (
	defaultAppointmentMinutes = 60
	maxAppointmentMinutes     = 12 * 60
	maxBookingTextLen         = 1000

	bookingKindAppointment = "appointment"
	bookingKindQuote       = "quote"
)

// BookingRole selects which side of a booking a listing is for.
type BookingRole string

const (
	BookingAsClient BookingRole = "client"
	BookingAsArtist BookingRole = "artist"
)

type BookingService struct {
	bookings repository.BookingRepository
	users    repository.UserRepository
	artists  repository.ArtistRepository
	notifier Notifier
	now      clock
}

type CreateAppointmentInput struct {
	ClientID        uint
	ArtistID        uint
	Date            time.Time
	DurationMinutes int
	Description     string
}

type RequestQuoteInput struct {
	ClientID       uint
	ArtistID       uint
	Description    string
	Styles         []string
	BodyPart       string
	Size           string
	EstimatedPrice *float64
}

// UpdateQuoteInput is an artist reply (sent with a price) or a client
// decision (accepted or rejected).
type UpdateQuoteInput struct {
	ActorID     uint
	QuoteID     uint
	Status      models.QuoteStatus
	Price       *float64
	ArtistNotes string
}

func NewBookingService(bookings repository.BookingRepository, users repository.UserRepository, artists repository.ArtistRepository, notifier Notifier) *BookingService {
	return &BookingService{bookings: bookings, users: users, artists: artists, notifier: notifier, now: utcNow}
}

// bookableArtist returns the artist user when they accept bookings.
func (s *BookingService) bookableArtist(ctx context.Context, clientID, artistID uint) (*models.User, error) {
	if clientID == artistID {
		return nil, models.NewValidationError("You cannot book yourself")
	}
	client, err := s.users.GetByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !client.CanBookAppointments() {
		return nil, models.NewForbiddenError("Your account cannot book appointments")
	}
	artist, err := s.users.GetByID(ctx, artistID)
	if err != nil {
		return nil, err
	}
	if !artist.IsArtist() || !artist.IsActive() {
		return nil, models.NewValidationError("The selected user is not an available artist")
	}
	profile, err := s.artists.FindByUserID(ctx, artistID)
	if err != nil {
		return nil, err
	}
	if !profile.BookingEnabled {
		return nil, models.NewValidationError("This artist is not accepting bookings")
	}
	return artist, nil
}

func (s *BookingService) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (*models.Appointment, error) {
	if !in.Date.After(s.now()) {
		return nil, models.NewValidationError("Appointment date must be in the future")
	}
	if in.DurationMinutes == 0 {
		in.DurationMinutes = defaultAppointmentMinutes
	}
	if in.DurationMinutes < 0 || in.DurationMinutes > maxAppointmentMinutes {
		return nil, models.NewValidationError("Invalid appointment duration")
	}
	in.Description = strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(in.Description) > maxBookingTextLen {
		return nil, models.NewValidationError("Description too long (max 1000 characters)")
	}
	if _, err := s.bookableArtist(ctx, in.ClientID, in.ArtistID); err != nil {
		return nil, err
	}

	appt := &models.Appointment{
		ClientID:        in.ClientID,
		ArtistID:        in.ArtistID,
		Date:            in.Date.UTC(),
		DurationMinutes: in.DurationMinutes,
		Description:     in.Description,
		Status:          models.AppointmentPending,
	}
	if err := s.bookings.CreateAppointment(ctx, appt); err != nil {
		return nil, err
	}
	s.appointmentChanged(ctx, appt, in.ClientID, in.ArtistID, notifications.EventAppointmentRequested)
	return appt, nil
}

// ConfirmAppointment is an artist action on a pending appointment.
func (s *BookingService) ConfirmAppointment(ctx context.Context, actorID, id uint) (*models.Appointment, error) {
	return s.artistTransition(ctx, actorID, id, models.AppointmentPending, models.AppointmentConfirmed, notifications.EventAppointmentConfirmed)
}

// CompleteAppointment is an artist action on a confirmed appointment.
func (s *BookingService) CompleteAppointment(ctx context.Context, actorID, id uint) (*models.Appointment, error) {
	return s.artistTransition(ctx, actorID, id, models.AppointmentConfirmed, models.AppointmentCompleted, notifications.EventAppointmentCompleted)
}

func (s *BookingService) artistTransition(ctx context.Context, actorID, id uint, from, to models.AppointmentStatus, event string) (*models.Appointment, error) {
	appt, err := s.bookings.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.ArtistID != actorID {
		return nil, models.NewForbiddenError("Only the artist can update this appointment")
	}
	if appt.Status != from {
		return nil, models.NewValidationError("Appointment is " + string(appt.Status))
	}
	if err := s.bookings.TransitionAppointment(ctx, id, []models.AppointmentStatus{from}, to); err != nil {
		return nil, err
	}
	appt.Status = to
	s.appointmentChanged(ctx, appt, actorID, appt.ClientID, event)
	return appt, nil
}

// CancelAppointment may be called by either side until the appointment
// is completed.
func (s *BookingService) CancelAppointment(ctx context.Context, actorID, id uint) (*models.Appointment, error) {
	appt, err := s.bookings.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	var counterpart uint
	switch actorID {
	case appt.ClientID:
		counterpart = appt.ArtistID
	case appt.ArtistID:
		counterpart = appt.ClientID
	default:
		return nil, models.NewForbiddenError("You are not part of this appointment")
	}
	switch appt.Status {
	case models.AppointmentCompleted:
		return nil, models.NewValidationError("Completed appointments cannot be cancelled")
	case models.AppointmentCancelled:
		return nil, models.NewConflictError("Appointment is already cancelled")
	}

	live := []models.AppointmentStatus{models.AppointmentPending, models.AppointmentConfirmed}
	if err := s.bookings.TransitionAppointment(ctx, id, live, models.AppointmentCancelled); err != nil {
		return nil, err
	}
	appt.Status = models.AppointmentCancelled
	s.appointmentChanged(ctx, appt, actorID, counterpart, notifications.EventAppointmentCancelled)
	return appt, nil
}

func (s *BookingService) ListAppointments(ctx context.Context, userID uint, role BookingRole, status models.AppointmentStatus, p Pagination) (PageResult[models.Appointment], error) {
	asArtist, err := parseBookingRole(role)
	if err != nil {
		return PageResult[models.Appointment]{}, err
	}
	switch status {
	case "", models.AppointmentPending, models.AppointmentConfirmed, models.AppointmentCompleted, models.AppointmentCancelled:
	default:
		return PageResult[models.Appointment]{}, models.NewValidationError("Unknown appointment status")
	}
	items, total, err := s.bookings.ListAppointments(ctx, repository.AppointmentFilter{
		UserID:   userID,
		AsArtist: asArtist,
		Status:   status,
	}, p.repoPage())
	if err != nil {
		return PageResult[models.Appointment]{}, err
	}
	return newPageResult(items, total, p), nil
}

func (s *BookingService) RequestQuote(ctx context.Context, in RequestQuoteInput) (*models.Quote, error) {
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return nil, models.NewValidationError("Description is required")
	}
	if utf8.RuneCountInString(in.Description) > maxBookingTextLen {
		return nil, models.NewValidationError("Description too long (max 1000 characters)")
	}
	if in.EstimatedPrice != nil && *in.EstimatedPrice < 0 {
		return nil, models.NewValidationError("Estimated price cannot be negative")
	}
	if !validation.ValidateTattooDetails(&models.TattooDetails{BodyPart: in.BodyPart, Size: in.Size}) {
		return nil, models.NewValidationError("Invalid body part or size")
	}
	if _, err := s.bookableArtist(ctx, in.ClientID, in.ArtistID); err != nil {
		return nil, err
	}

	quote := &models.Quote{
		ClientID:       in.ClientID,
		ArtistID:       in.ArtistID,
		Description:    in.Description,
		Styles:         validation.NormalizeStyles(in.Styles),
		BodyPart:       strings.TrimSpace(in.BodyPart),
		Size:           strings.TrimSpace(in.Size),
		EstimatedPrice: in.EstimatedPrice,
		Status:         models.QuotePending,
	}
	if err := s.bookings.CreateQuote(ctx, quote); err != nil {
		return nil, err
	}
	s.quoteChanged(ctx, quote, in.ClientID, in.ArtistID, notifications.EventQuoteRequested)
	return quote, nil
}

func (s *BookingService) UpdateQuote(ctx context.Context, in UpdateQuoteInput) (*models.Quote, error) {
	quote, err := s.bookings.GetQuote(ctx, in.QuoteID)
	if err != nil {
		return nil, err
	}

	var (
		counterpart uint
		event       string
	)
	switch in.ActorID {
	case quote.ArtistID:
		if in.Status != models.QuoteSent {
			return nil, models.NewValidationError("Artists can only send a quote")
		}
		if quote.Status != models.QuotePending {
			return nil, models.NewValidationError("Quote has already been answered")
		}
		if in.Price == nil || *in.Price < 0 {
			return nil, models.NewValidationError("A non-negative price is required")
		}
		notes := strings.TrimSpace(in.ArtistNotes)
		if utf8.RuneCountInString(notes) > maxBookingTextLen {
			return nil, models.NewValidationError("Notes too long (max 1000 characters)")
		}
		quote.Price = in.Price
		quote.ArtistNotes = notes
		counterpart, event = quote.ClientID, notifications.EventQuoteSent
	case quote.ClientID:
		switch in.Status {
		case models.QuoteAccepted:
			event = notifications.EventQuoteAccepted
		case models.QuoteRejected:
			event = notifications.EventQuoteRejected
		default:
			return nil, models.NewValidationError("Clients can only accept or reject a quote")
		}
		if quote.Status != models.QuoteSent {
			return nil, models.NewValidationError("Only sent quotes can be answered")
		}
		counterpart = quote.ArtistID
	default:
		return nil, models.NewForbiddenError("You are not part of this quote")
	}

	quote.Status = in.Status
	if err := s.bookings.UpdateQuote(ctx, quote); err != nil {
		return nil, err
	}
	s.quoteChanged(ctx, quote, in.ActorID, counterpart, event)
	return quote, nil
}

func (s *BookingService) ListQuotes(ctx context.Context, userID uint, role BookingRole, p Pagination) (PageResult[models.Quote], error) {
	asArtist, err := parseBookingRole(role)
	if err != nil {
		return PageResult[models.Quote]{}, err
	}
	items, total, err := s.bookings.ListQuotes(ctx, userID, asArtist, p.repoPage())
	if err != nil {
		return PageResult[models.Quote]{}, err
	}
	return newPageResult(items, total, p), nil
}

func (s *BookingService) appointmentChanged(ctx context.Context, appt *models.Appointment, actorID, recipientID uint, event string) {
	observability.BookingEvents.WithLabelValues(bookingKindAppointment, string(appt.Status)).Inc()
	notify(ctx, s.notifier, recipientID, notifications.Event{
		Type:    event,
		ActorID: actorID,
		Payload: map[string]any{"appointment_id": appt.ID, "date": appt.Date, "status": appt.Status},
	})
}

func (s *BookingService) quoteChanged(ctx context.Context, quote *models.Quote, actorID, recipientID uint, event string) {
	observability.BookingEvents.WithLabelValues(bookingKindQuote, string(quote.Status)).Inc()
	notify(ctx, s.notifier, recipientID, notifications.Event{
		Type:    event,
		ActorID: actorID,
		Payload: map[string]any{"quote_id": quote.ID, "status": quote.Status, "price": quote.Price},
	})
}

func parseBookingRole(role BookingRole) (bool, error) {
	switch role {
	case "", BookingAsClient:
		return false, nil
	case BookingAsArtist:
		return true, nil
	}
	return false, models.NewValidationError("role must be client or artist")
}
