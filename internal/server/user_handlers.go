package server

import (
	"artenis/internal/models"
	"artenis/internal/service"

	"github.com/gofiber/fiber/v2"
)

type updateProfileRequest struct {
	FirstName            *string  `json:"first_name"`
	LastName             *string  `json:"last_name"`
	Bio                  *string  `json:"bio"`
	Avatar               *string  `json:"avatar"`
	Phone                *string  `json:"phone"`
	Interests            []string `json:"interests"`
	NotificationsEnabled *bool    `json:"notifications_enabled"`
}

// GetMyProfile handles GET /api/users/profile
// @Summary Own profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.UserProfile
// @Router /users/profile [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID := currentUserID(c)
	profile, err := s.userService.GetProfile(c.UserContext(), userID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PATCH /api/users/profile
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body updateProfileRequest true "Changes"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/profile [patch]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:               currentUserID(c),
		FirstName:            req.FirstName,
		LastName:             req.LastName,
		Bio:                  req.Bio,
		Avatar:               req.Avatar,
		Phone:                req.Phone,
		Interests:            req.Interests,
		NotificationsEnabled: req.NotificationsEnabled,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// GetUserProfile handles GET /api/users/:id
// @Summary Public profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.UserProfile
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	profile, err := s.userService.GetProfile(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// SearchUsers handles GET /api/users/search?q=
// @Summary Search users
// @Tags users
// @Produce json
// @Param q query string true "Username or name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} object{items=[]models.User,total=int}
// @Router /users/search [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	result, err := s.userService.Search(c.UserContext(), c.Query("q"), parsePagination(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// GetUserReputation handles GET /api/users/:id/reputation
// @Summary Reputation snapshot
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} reputation.Snapshot
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/reputation [get]
func (s *Server) GetUserReputation(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	snap, err := s.userService.Reputation(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(snap)
}

// GetArtistEligibility handles GET /api/users/me/artist-eligibility
func (s *Server) GetArtistEligibility(c *fiber.Ctx) error {
	result, err := s.userService.ArtistEligibility(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// ChangeUserRole handles PATCH /api/users/:id/role (admin)
// @Summary Change role
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body object{role=string} true "New role"
// @Success 200 {object} models.User
// @Failure 403 {object} models.ErrorResponse
// @Router /users/{id}/role [patch]
func (s *Server) ChangeUserRole(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.ChangeRole(c.UserContext(), currentUserID(c), id, models.UserRole(req.Role))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// DeactivateUser handles DELETE /api/users/:id (self or admin)
func (s *Server) DeactivateUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.userService.Deactivate(c.UserContext(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// FollowUser handles POST /api/users/follow/:userId
// @Summary Follow a user
// @Tags follows
// @Security BearerAuth
// @Param userId path int true "User to follow"
// @Success 201 {object} object{following=bool}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /users/follow/{userId} [post]
func (s *Server) FollowUser(c *fiber.Ctx) error {
	targetID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	if err := s.followService.Follow(c.UserContext(), currentUserID(c), targetID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"following": true})
}

// UnfollowUser handles DELETE /api/users/follow/:userId
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	targetID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	if err := s.followService.Unfollow(c.UserContext(), currentUserID(c), targetID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"following": false})
}

// GetFollowers handles GET /api/users/:userId/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	result, err := s.followService.Followers(c.UserContext(), userID, parsePagination(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// GetFollowing handles GET /api/users/:userId/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	result, err := s.followService.Following(c.UserContext(), userID, parsePagination(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}
