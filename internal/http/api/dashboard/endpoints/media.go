package endpoints

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/db"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/http/api"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/http/api/dashboard/packets"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/storage"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/vnnox"
)

var allowedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"video/mp4":  true,
	"video/mpeg": true,
}

type MediaController struct {
	store     MediaStore
	files     storage.Storage
	publisher ContentPublisher
	maxBytes  int64
}

// MediaModule mounts /media. Uploads larger than maxBytes are rejected.
func MediaModule(store MediaStore, files storage.Storage, publisher ContentPublisher, maxBytes int64) api.Module {
	ctl := &MediaController{store: store, files: files, publisher: publisher, maxBytes: maxBytes}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/media", ctl.listMedia)
		c.POST("/media/upload", ctl.uploadMedia)
		c.DELETE("/media/:id", ctl.deleteMedia)
		c.POST("/media/:mediaId/publish/:displayId", ctl.publishMedia)
	})
}

// GET /api/media
func (m *MediaController) listMedia(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	media, err := m.store.ListMediaByUser(ctx.Request.Context(), user.ID)
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "failed to fetch media")
	}
	return media, nil
}

// POST /api/media/upload (multipart field "file")
func (m *MediaController) uploadMedia(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, m.maxBytes+1<<20)

	header, err := ctx.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, api.NewError(http.StatusRequestEntityTooLarge, "file too large")
		}
		return nil, api.NewError(http.StatusBadRequest, "no file provided")
	}
	if header.Size > m.maxBytes {
		return nil, api.NewError(http.StatusRequestEntityTooLarge, "file too large")
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = storage.ContentType(header.Filename)
	}
	if !allowedMediaTypes[mimeType] {
		return nil, api.NewError(http.StatusBadRequest, "invalid file type")
	}

	src, err := header.Open()
	if err != nil {
		return nil, api.NewError(http.StatusBadRequest, "could not read file")
	}
	defer src.Close()

	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, api.NewError(http.StatusBadRequest, "could not read file")
	}

	record := model.Media{
		UserID:   user.ID,
		FileName: header.Filename,
		FileSize: header.Size,
		MimeType: mimeType,
	}
	if strings.HasPrefix(mimeType, "image/") {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(raw)); err == nil {
			record.Width, record.Height = &cfg.Width, &cfg.Height
		}
	}

	url, key, err := m.files.Save(ctx.Request.Context(), user.ID, header.Filename, mimeType, bytes.NewReader(raw))
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("failed to store media")
		return nil, api.NewError(http.StatusInternalServerError, "failed to upload media")
	}
	record.FileURL, record.StorageKey = url, key

	created, err := m.store.CreateMedia(ctx.Request.Context(), record)
	if err != nil {
		if delErr := m.files.Delete(ctx.Request.Context(), key); delErr != nil {
			log.Warn().Err(delErr).Str("key", key).Msg("failed to remove orphaned upload")
		}
		return nil, api.NewError(http.StatusInternalServerError, "failed to upload media")
	}

	log.Info().Str("media_id", created.ID).Str("user_id", user.ID).Int64("size", created.FileSize).Msg("media uploaded")
	return created, nil
}

// DELETE /api/media/:id
func (m *MediaController) deleteMedia(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	media, err := m.store.GetUserMedia(ctx.Request.Context(), user.ID, ctx.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NewError(http.StatusNotFound, "media not found")
	}
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "failed to fetch media")
	}

	if err := m.files.Delete(ctx.Request.Context(), media.StorageKey); err != nil {
		log.Warn().Err(err).Str("media_id", media.ID).Msg("failed to delete stored file")
	}
	if err := m.store.DeleteMedia(ctx.Request.Context(), user.ID, media.ID); err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "failed to delete media")
	}
	return nil, nil
}

// POST /api/media/:mediaId/publish/:displayId
func (m *MediaController) publishMedia(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	media, err := m.store.GetUserMedia(ctx.Request.Context(), user.ID, ctx.Param("mediaId"))
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NewError(http.StatusNotFound, "media not found")
	}
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "failed to fetch media")
	}

	display, apiErr := ownedDisplay(ctx, m.store, user, "displayId")
	if apiErr != nil {
		return nil, apiErr
	}

	env, err := m.publisher.UploadMedia(ctx.Request.Context(), display.TerminalID, vnnox.MediaUpload{
		URL:      media.FileURL,
		Name:     media.FileName,
		MimeType: media.MimeType,
		Size:     media.FileSize,
		Width:    media.Width,
		Height:   media.Height,
		Duration: media.Duration,
	})
	if err != nil {
		log.Error().Err(err).Str("media_id", media.ID).Str("display_id", display.ID).Msg("failed to upload media to terminal")
		return nil, api.NewError(http.StatusBadGateway, "failed to publish media")
	}

	if env.Data.ContentID != "" {
		if err := m.publisher.PublishContent(ctx.Request.Context(), display.TerminalID, env.Data.ContentID); err != nil {
			log.Error().Err(err).Str("content_id", env.Data.ContentID).Msg("failed to publish content")
			return nil, api.NewError(http.StatusBadGateway, "failed to publish media")
		}
	}
	return packets.PublishResponse{Success: true, VnnoxResponse: env}, nil
}
