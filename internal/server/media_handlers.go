package server

import (
	"errors"
	"io"
	"strings"

	"artenis/internal/models"
	"artenis/internal/service"
	"artenis/internal/storage"

	"github.com/gofiber/fiber/v2"
)

// UploadMedia handles POST /api/media (multipart field "files")
// @Summary Upload media
// @Description Images are resized to fit 2048px and stored as WebP; videos are stored as-is.
// @Tags media
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param files formData file true "Files (up to 10)"
// @Success 201 {object} object{urls=[]string}
// @Failure 400 {object} models.ErrorResponse
// @Router /media [post]
func (s *Server) UploadMedia(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}
	if len(headers) > service.MaxFilesPerUpload {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Too many files"))
	}

	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > s.config.MaxUploadBytes() {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("File too large: "+fh.Filename))
		}
		src, err := fh.Open()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
		}
		content, err := io.ReadAll(src)
		_ = src.Close()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
		}
		files = append(files, service.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Content:     content,
		})
	}

	urls, err := s.mediaService.Upload(c.UserContext(), currentUserID(c), files)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"urls": urls})
}

// ServeMedia serves objects kept by the in-process store under /media/*.
func (s *Server) ServeMedia(store *storage.MemoryStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := strings.TrimPrefix(c.Params("*"), "/")
		if key == "" || strings.Contains(key, "..") {
			return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid media key"))
		}
		obj, err := store.Get(key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Media", key))
			}
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		}
		c.Set(fiber.HeaderContentType, obj.ContentType)
		c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
		return c.Send(obj.Body)
	}
}
