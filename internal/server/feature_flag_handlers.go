package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags godoc
// @Summary Feature flags
// @Description Configured flag values and their evaluation for the calling admin
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /admin/feature-flags [get]
// @Security BearerAuth
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	uid := currentUserID(c)
	return c.JSON(fiber.Map{
		"user_id":   uid,
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(uid),
	})
}
