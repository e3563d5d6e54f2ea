package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"tablefront-pos-service/internal/middleware"
	"tablefront-pos-service/internal/utils"
	"tablefront-pos-service/pkg/response"
)

const (
	uploadMaxSide      = 1600
	uploadThumbSize    = 400
	uploadJpegQuality  = 85
	uploadThumbQuality = 80
)

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// ImageUpload accepts a multipart "file" field, normalizes it to JPEG
// (EXIF rotation applied, longest side capped) plus a square thumbnail,
// and stores both under the tenant's prefix. Returns the public URLs.
func (h *Handler) ImageUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	if h.Store == nil {
		response.Error(w, http.StatusServiceUnavailable, "STORAGE_DISABLED", "Image storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxFileSizeBytes)
	if err := r.ParseMultipartForm(h.Config.MaxFileSizeBytes); err != nil {
		response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds the upload size limit")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "A file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Failed to read uploaded file")
		return
	}

	// Sniff the real content type; the Content-Type header in the part is
	// client-controlled.
	contentType := utils.DetectContentType(data)
	if !utils.ValidateImageContentType(contentType) {
		response.Error(w, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "Only JPEG, PNG, WebP and GIF images are accepted")
		return
	}

	encoded, meta, err := utils.EncodeJpegFitInside(data, uploadMaxSide, uploadJpegQuality)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "File is not a decodable image")
		return
	}
	thumb, _, err := utils.EncodeJpegCoverSquare(data, uploadThumbSize, uploadThumbQuality)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "File is not a decodable image")
		return
	}

	base := fmt.Sprintf("restaurants/%d/%s-%s", *authCtx.RestaurantID, time.Now().Format("20060102"), randomHex(8))
	imageKey := base + ".jpg"
	thumbKey := base + "-thumb.jpg"

	imageURL, err := h.Store.PutObject(ctx, imageKey, encoded, "image/jpeg")
	if err != nil {
		h.Logger.Error("image upload failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store image")
		return
	}
	thumbURL, err := h.Store.PutObject(ctx, thumbKey, thumb, "image/jpeg")
	if err != nil {
		// Keep the main image; the thumbnail is best-effort.
		h.Logger.Warn("thumbnail upload failed", zapError(err))
		thumbURL = imageURL
	}

	response.Created(w, map[string]any{
		"url":          imageURL,
		"thumbnailUrl": thumbURL,
		"originalName": header.Filename,
		"width":        meta.Width,
		"height":       meta.Height,
		"format":       meta.Format,
	})
}
