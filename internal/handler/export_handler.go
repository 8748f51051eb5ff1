package handler

import (
	"mime"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/response"
	"github.com/ibaf-upi/ibaf-api/pkg/storage"
)

type exportOpener interface {
	Open(token string) (*os.File, storage.DownloadGrant, error)
}

// ExportHandler serves stored exports behind signed links.
type ExportHandler struct {
	exports exportOpener
}

// NewExportHandler creates an export download handler.
func NewExportHandler(exports exportOpener) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Download godoc
// @Summary Download a shared export via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	file, grant, err := h.exports.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}

	filename := path.Base(grant.Path)
	contentType := exportContentType(filename)
	response.AttachmentFrom(c, filename, contentType, info.Size(), file)
}

func exportContentType(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == ".csv" {
		return "text/csv; charset=utf-8"
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}
