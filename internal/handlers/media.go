package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"usermgmt/console/internal/media"
)

// multipartOverhead leaves room for the text fields next to the file.
const multipartOverhead = 1 << 20

type stagedResponse struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	MIME string `json:"mime"`
	Size int64  `json:"size"`
}

func limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, media.MaxUploadBytes+multipartOverhead)
}

// formUpload reads an optional file field. A request without the field, or
// one that is not multipart at all, yields nil.
func formUpload(c *gin.Context, field string) (*media.Upload, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	if header.Size > media.MaxUploadBytes {
		return nil, media.ErrTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, media.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	return &media.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func requiredUpload(c *gin.Context, field string) (*media.Upload, error) {
	up, err := formUpload(c, field)
	if err != nil {
		return nil, err
	}
	if up == nil {
		return nil, media.ErrEmptyUpload
	}
	return up, nil
}

func (h HandlerSet) previewURL(id string) string {
	return strings.TrimSuffix(h.cfg.HTTP.PublicURL, "/") + "/previews/" + id
}

// StageSignupAvatar holds a picture chosen on the signup page so the page
// can show it; the signup form then refers to it by id.
func (h HandlerSet) StageSignupAvatar(c *gin.Context) {
	limitBody(c)

	upload, err := requiredUpload(c, "profileImage")
	if err != nil {
		h.fail(c, err)
		return
	}

	staged, err := h.stager.Stage(c.Request.Context(), *upload)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.respond(c, http.StatusCreated, gin.H{"preview": stagedResponse{
		ID:   staged.ID,
		URL:  h.previewURL(staged.ID),
		MIME: staged.MIME,
		Size: staged.Size,
	}})
}

func (h HandlerSet) Preview(c *gin.Context) {
	staged, err := h.stager.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, body := errorBody(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("preview_id", c.Param("id")).Msg("failed to open preview")
		}
		c.JSON(status, body)
		return
	}

	header := c.Writer.Header()
	header.Set("Cache-Control", "private, max-age=300")
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	header.Set("Content-Length", strconv.Itoa(len(staged.Data)))
	c.Data(http.StatusOK, staged.MIME, staged.Data)
}
