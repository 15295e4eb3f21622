package server

import (
	"time"

	"artenis/internal/models"
	"artenis/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Tags          []string              `json:"tags"`
	Styles        []string              `json:"styles"`
	MediaURLs     []string              `json:"media_urls"`
	Location      *models.Location      `json:"location"`
	TattooDetails *models.TattooDetails `json:"tattoo_details"`
	AllowComments *bool                 `json:"allow_comments"`
	AllowSharing  *bool                 `json:"allow_sharing"`
	Draft         bool                  `json:"draft"`
	ScheduledAt   *time.Time            `json:"scheduled_at"`
}

type updatePostRequest struct {
	Title         *string               `json:"title"`
	Description   *string               `json:"description"`
	Tags          []string              `json:"tags"`
	Styles        []string              `json:"styles"`
	MediaURLs     []string              `json:"media_urls"`
	Location      *models.Location      `json:"location"`
	TattooDetails *models.TattooDetails `json:"tattoo_details"`
	AllowComments *bool                 `json:"allow_comments"`
	AllowSharing  *bool                 `json:"allow_sharing"`
}

// GetFeed handles GET /api/posts/feed
// @Summary Personalized feed
// @Description Published posts filtered by style and city, ranked for the viewer when ranked_feed is on.
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size (max 50)"
// @Param styles query string false "Comma separated styles"
// @Param city query string false "City"
// @Param interests query string false "Comma separated interests"
// @Success 200 {object} service.FeedPage
// @Router /posts/feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page, err := s.postService.Feed(c.UserContext(), service.FeedInput{
		UserID:     currentUserID(c),
		Styles:     splitList(c.Query("styles")),
		City:       c.Query("city"),
		Interests:  splitList(c.Query("interests")),
		Pagination: parsePagination(c),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}

// CreatePost handles POST /api/posts
// @Summary Create post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createPostRequest true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.Create(c.UserContext(), service.CreatePostInput{
		UserID:        currentUserID(c),
		Title:         req.Title,
		Description:   req.Description,
		Tags:          req.Tags,
		Styles:        req.Styles,
		MediaURLs:     req.MediaURLs,
		Location:      req.Location,
		TattooDetails: req.TattooDetails,
		AllowComments: req.AllowComments,
		AllowSharing:  req.AllowSharing,
		Draft:         req.Draft,
		ScheduledAt:   req.ScheduledAt,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/posts/:id
// @Summary Get post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.Get(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// GetUserPosts handles GET /api/posts/user/:userId
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	result, err := s.postService.ListByUser(c.UserContext(), userID, s.optionalUserID(c), parsePagination(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// GetSavedPosts handles GET /api/posts/me/saved
func (s *Server) GetSavedPosts(c *fiber.Ctx) error {
	result, err := s.postService.Saved(c.UserContext(), currentUserID(c), parsePagination(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body updatePostRequest true "Changes"
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req updatePostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.Update(c.UserContext(), service.UpdatePostInput{
		UserID:        currentUserID(c),
		PostID:        id,
		Title:         req.Title,
		Description:   req.Description,
		Tags:          req.Tags,
		Styles:        req.Styles,
		MediaURLs:     req.MediaURLs,
		Location:      req.Location,
		TattooDetails: req.TattooDetails,
		AllowComments: req.AllowComments,
		AllowSharing:  req.AllowSharing,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// ChangePostStatus handles PATCH /api/posts/:id/status
// @Summary Change post status
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body object{status=string} true "Target status"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/{id}/status [patch]
func (s *Server) ChangePostStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.ChangeStatus(c.UserContext(), currentUserID(c), id, models.PostStatus(req.Status))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// postAction runs a viewer interaction on the :id post and answers with body.
func (s *Server) postAction(c *fiber.Ctx, body fiber.Map, action func(userID, postID uint) error) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := action(currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(body)
}

// LikePost handles POST /api/posts/:id/like
func (s *Server) LikePost(c *fiber.Ctx) error {
	return s.postAction(c, fiber.Map{"liked": true}, func(userID, postID uint) error {
		return s.postService.Like(c.UserContext(), userID, postID)
	})
}

// UnlikePost handles DELETE /api/posts/:id/like
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	return s.postAction(c, fiber.Map{"liked": false}, func(userID, postID uint) error {
		return s.postService.Unlike(c.UserContext(), userID, postID)
	})
}

// SavePost handles POST /api/posts/:id/save
func (s *Server) SavePost(c *fiber.Ctx) error {
	return s.postAction(c, fiber.Map{"saved": true}, func(userID, postID uint) error {
		return s.postService.Save(c.UserContext(), userID, postID)
	})
}

// UnsavePost handles DELETE /api/posts/:id/save
func (s *Server) UnsavePost(c *fiber.Ctx) error {
	return s.postAction(c, fiber.Map{"saved": false}, func(userID, postID uint) error {
		return s.postService.Unsave(c.UserContext(), userID, postID)
	})
}

// SharePost handles POST /api/posts/:id/share
func (s *Server) SharePost(c *fiber.Ctx) error {
	return s.postAction(c, fiber.Map{"shared": true}, func(userID, postID uint) error {
		return s.postService.Share(c.UserContext(), userID, postID)
	})
}

// ReportPost handles POST /api/posts/:id/report
// @Summary Report post
// @Tags posts
// @Accept json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body object{reason=string} false "Reason"
// @Success 200 {object} object{reported=bool}
// @Router /posts/{id}/report [post]
func (s *Server) ReportPost(c *fiber.Ctx) error {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.BodyParser(&req)
	return s.postAction(c, fiber.Map{"reported": true}, func(userID, postID uint) error {
		return s.postService.Report(c.UserContext(), userID, postID, req.Reason)
	})
}

// GetSuggestedTags handles GET /api/posts/:id/suggested-tags
func (s *Server) GetSuggestedTags(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	tags, err := s.postService.SuggestTags(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"tags": tags})
}

// GetModerationQueue handles GET /api/admin/moderation/posts
func (s *Server) GetModerationQueue(c *fiber.Ctx) error {
	result, err := s.postService.ModerationQueue(c.UserContext(), currentUserID(c), parsePagination(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// PromotePost handles PATCH /api/admin/posts/:id/promote
// @Summary Promote post
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body object{is_promoted=bool,promoted_until=string} true "Promotion"
// @Success 200 {object} models.Post
// @Router /admin/posts/{id}/promote [patch]
func (s *Server) PromotePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		IsPromoted    bool       `json:"is_promoted"`
		PromotedUntil *time.Time `json:"promoted_until"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.Promote(c.UserContext(), currentUserID(c), id, req.IsPromoted, req.PromotedUntil)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}
