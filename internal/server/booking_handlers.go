package server

import (
	"time"

	"artenis/internal/models"
	"artenis/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createAppointmentRequest struct {
	ArtistID        uint      `json:"artist_id"`
	Date            time.Time `json:"date"`
	DurationMinutes int       `json:"duration_minutes"`
	Description     string    `json:"description"`
}

type requestQuoteRequest struct {
	ArtistID       uint     `json:"artist_id"`
	Description    string   `json:"description"`
	Styles         []string `json:"styles"`
	BodyPart       string   `json:"body_part"`
	Size           string   `json:"size"`
	EstimatedPrice *float64 `json:"estimated_price"`
}

type updateQuoteRequest struct {
	Status      string   `json:"status"`
	Price       *float64 `json:"price"`
	ArtistNotes string   `json:"artist_notes"`
}

// CreateAppointment handles POST /api/bookings/appointments
// @Summary Book an appointment
// @Tags bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createAppointmentRequest true "Appointment"
// @Success 201 {object} models.Appointment
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /bookings/appointments [post]
func (s *Server) CreateAppointment(c *fiber.Ctx) error {
	var req createAppointmentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.ArtistID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("artist_id is required"))
	}

	appt, err := s.bookingService.CreateAppointment(c.UserContext(), service.CreateAppointmentInput{
		ClientID:        currentUserID(c),
		ArtistID:        req.ArtistID,
		Date:            req.Date,
		DurationMinutes: req.DurationMinutes,
		Description:     req.Description,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(appt)
}

// ListAppointments handles GET /api/bookings/appointments?role=client|artist&status=
func (s *Server) ListAppointments(c *fiber.Ctx) error {
	result, err := s.bookingService.ListAppointments(c.UserContext(), currentUserID(c),
		service.BookingRole(c.Query("role")), models.AppointmentStatus(c.Query("status")), parsePagination(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

func (s *Server) appointmentAction(c *fiber.Ctx, action func(actorID, id uint) (*models.Appointment, error)) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	appt, err := action(currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(appt)
}

// ConfirmAppointment handles PATCH /api/bookings/appointments/:id/confirm
func (s *Server) ConfirmAppointment(c *fiber.Ctx) error {
	return s.appointmentAction(c, func(actorID, id uint) (*models.Appointment, error) {
		return s.bookingService.ConfirmAppointment(c.UserContext(), actorID, id)
	})
}

// CompleteAppointment handles PATCH /api/bookings/appointments/:id/complete
func (s *Server) CompleteAppointment(c *fiber.Ctx) error {
	return s.appointmentAction(c, func(actorID, id uint) (*models.Appointment, error) {
		return s.bookingService.CompleteAppointment(c.UserContext(), actorID, id)
	})
}

// CancelAppointment handles DELETE /api/bookings/appointments/:id
func (s *Server) CancelAppointment(c *fiber.Ctx) error {
	return s.appointmentAction(c, func(actorID, id uint) (*models.Appointment, error) {
		return s.bookingService.CancelAppointment(c.UserContext(), actorID, id)
	})
}

// RequestQuote handles POST /api/bookings/quotes
// @Summary Request a quote
// @Tags bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body requestQuoteRequest true "Quote request"
// @Success 201 {object} models.Quote
// @Router /bookings/quotes [post]
func (s *Server) RequestQuote(c *fiber.Ctx) error {
	var req requestQuoteRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.ArtistID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("artist_id is required"))
	}

	quote, err := s.bookingService.RequestQuote(c.UserContext(), service.RequestQuoteInput{
		ClientID:       currentUserID(c),
		ArtistID:       req.ArtistID,
		Description:    req.Description,
		Styles:         req.Styles,
		BodyPart:       req.BodyPart,
		Size:           req.Size,
		EstimatedPrice: req.EstimatedPrice,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(quote)
}

// ListQuotes handles GET /api/bookings/quotes?role=client|artist
func (s *Server) ListQuotes(c *fiber.Ctx) error {
	result, err := s.bookingService.ListQuotes(c.UserContext(), currentUserID(c),
		service.BookingRole(c.Query("role")), parsePagination(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// UpdateQuote handles PATCH /api/bookings/quotes/:id
// @Summary Answer a quote
// @Description The artist sends a price; the client accepts or rejects a sent quote.
// @Tags bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Quote ID"
// @Param request body updateQuoteRequest true "Update"
// @Success 200 {object} models.Quote
// @Router /bookings/quotes/{id} [patch]
func (s *Server) UpdateQuote(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req updateQuoteRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	quote, err := s.bookingService.UpdateQuote(c.UserContext(), service.UpdateQuoteInput{
		ActorID:     currentUserID(c),
		QuoteID:     id,
		Status:      models.QuoteStatus(req.Status),
		Price:       req.Price,
		ArtistNotes: req.ArtistNotes,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(quote)
}
