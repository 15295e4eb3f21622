package server

import (
	"artenis/internal/models"
	"artenis/internal/service"

	"github.com/gofiber/fiber/v2"
)

type updateArtistRequest struct {
	BusinessName   *string  `json:"business_name"`
	Bio            *string  `json:"bio"`
	Styles         []string `json:"styles"`
	City           *string  `json:"city"`
	BookingEnabled *bool    `json:"booking_enabled"`
	HourlyRate     *float64 `json:"hourly_rate"`
}

// GetArtistProfile handles GET /api/artists/:userId
// @Summary Artist profile
// @Tags artists
// @Produce json
// @Param userId path int true "Artist user ID"
// @Success 200 {object} models.ArtistProfile
// @Failure 404 {object} models.ErrorResponse
// @Router /artists/{userId} [get]
func (s *Server) GetArtistProfile(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	profile, err := s.artistService.Get(c.UserContext(), userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyArtistProfile handles PUT /api/artists/me
// @Summary Update own artist profile
// @Tags artists
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body updateArtistRequest true "Changes"
// @Success 200 {object} models.ArtistProfile
// @Router /artists/me [put]
func (s *Server) UpdateMyArtistProfile(c *fiber.Ctx) error {
	var req updateArtistRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	profile, err := s.artistService.UpdateMine(c.UserContext(), service.UpdateArtistInput{
		UserID:         currentUserID(c),
		BusinessName:   req.BusinessName,
		Bio:            req.Bio,
		Styles:         req.Styles,
		City:           req.City,
		BookingEnabled: req.BookingEnabled,
		HourlyRate:     req.HourlyRate,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}
