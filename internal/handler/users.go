package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meatshop-backoffice/internal/apperr"
	"github.com/iliyamo/meatshop-backoffice/internal/logging"
	"github.com/iliyamo/meatshop-backoffice/internal/middleware"
	"github.com/iliyamo/meatshop-backoffice/internal/session"
	"github.com/iliyamo/meatshop-backoffice/internal/storage"
)

// MaxLogoBytes is the largest accepted avatar upload.
const MaxLogoBytes = 2 << 20

type UsersHandler struct {
	Sessions *session.Service
	Avatars  storage.AvatarStore
	Log      logging.Logger
}

func NewUsersHandler(s *session.Service, avatars storage.AvatarStore, log logging.Logger) *UsersHandler {
	return &UsersHandler{Sessions: s, Avatars: avatars, Log: log}
}

type logoResp struct {
	OK      bool   `json:"ok"`
	LogoURL string `json:"logoUrl"`
	Message string `json:"message"`
}

// UploadLogo: POST /users/:id/logo (guarded). Multipart field "file";
// png, jpeg, webp or gif up to 2 MiB. Users may only change their own logo.
func (h *UsersHandler) UploadLogo(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	targetID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || targetID == 0 {
		return badRequest(c, "invalid user id")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	if fh.Size > MaxLogoBytes {
		return badRequest(c, "file exceeds 2 MiB")
	}
	contentType, err := sniff(fh)
	if err != nil {
		return writeError(c, h.Log, apperr.InternalError("could not read upload", err))
	}
	ext, ok := storage.Extension(contentType)
	if !ok {
		return badRequest(c, "only png, jpeg, webp or gif images are accepted")
	}

	data, err := prepare(fh, ext)
	if errors.Is(err, storage.ErrNotImage) {
		return badRequest(c, err.Error())
	}
	if err != nil {
		return writeError(c, h.Log, apperr.InternalError("could not read upload", err))
	}

	save := func(ctx context.Context) (string, error) {
		name := storage.ObjectName(targetID, ext, time.Now())
		return h.Avatars.Save(ctx, name, contentType, bytes.NewReader(data), int64(len(data)))
	}

	url, err := h.Sessions.UpdateLogo(c.Request().Context(), id.UserID, targetID, save)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, logoResp{OK: true, LogoURL: url, Message: "logo updated"})
}

func prepare(fh *multipart.FileHeader, ext string) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return storage.Prepare(f, ext)
}

// sniff detects the content type from the first bytes of the upload rather
// than trusting the client-declared header.
func sniff(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
