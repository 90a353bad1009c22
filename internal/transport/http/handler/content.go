package handler

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"collabrag/internal/app"
	"collabrag/internal/extract"
	"collabrag/internal/model"
	"collabrag/internal/transport/http/middleware"
	"collabrag/internal/transport/http/response"
)

type Ingester interface {
	Ingest(ctx context.Context, input app.IngestInput) (*app.IngestResult, error)
	ReindexInScope(ctx context.Context, scope model.Scope, fileID string) (int, error)
	SupportedMediaTypes() []string
}

type ContentManager interface {
	ListFiles(ctx context.Context, scope model.Scope) ([]model.SourceFile, error)
	DeleteFile(ctx context.Context, scope model.Scope, fileID string) error
	DeleteScope(ctx context.Context, scope model.Scope) *app.ScopeDeletion
}

type ContentHandler struct {
	ingester Ingester
	content  ContentManager
	maxBytes int64
}

func NewContentHandler(ingester Ingester, content ContentManager, maxBytes int64) *ContentHandler {
	return &ContentHandler{ingester: ingester, content: content, maxBytes: maxBytes}
}

// Upload accepts a multipart form with "file" and ingests it into the collab.
func (h *ContentHandler) Upload(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	scope, ok := collabScope(c)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid collab id")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, "file too large")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}

	result, err := h.ingester.Ingest(c.Request.Context(), app.IngestInput{
		UserID:    userID,
		Scope:     scope,
		FileName:  file.Filename,
		MediaType: detectMediaType(file.Header.Get("Content-Type"), file.Filename, data),
		Data:      data,
	})
	switch {
	case errors.Is(err, extract.ErrUnsupportedContentType):
		writeServiceErrorWithData(c, err, gin.H{"supported_media_types": h.ingester.SupportedMediaTypes()})
	case err != nil && result != nil:
		// strict indexing: the file is stored, the client still needs its id
		writeServiceErrorWithData(c, err, result)
	case err != nil:
		writeServiceError(c, err)
	default:
		response.Created(c, result)
	}
}

func (h *ContentHandler) List(c *gin.Context) {
	scope, ok := collabScope(c)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid collab id")
		return
	}
	files, err := h.content.ListFiles(c.Request.Context(), scope)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, files)
}

func (h *ContentHandler) Delete(c *gin.Context) {
	scope, ok := collabScope(c)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid collab id")
		return
	}
	if err := h.content.DeleteFile(c.Request.Context(), scope, c.Param("fileId")); err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, gin.H{"file_id": c.Param("fileId")})
}

func (h *ContentHandler) Reindex(c *gin.Context) {
	scope, ok := collabScope(c)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid collab id")
		return
	}
	n, err := h.ingester.ReindexInScope(c.Request.Context(), scope, c.Param("fileId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, gin.H{"file_id": c.Param("fileId"), "chunk_count": n})
}

// DeleteCollab removes every file of a collab. It always answers 200; step
// failures are listed in the warnings.
func (h *ContentHandler) DeleteCollab(c *gin.Context) {
	scope, ok := collabScope(c)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid collab id")
		return
	}
	response.OK(c, h.content.DeleteScope(c.Request.Context(), scope))
}

// detectMediaType prefers the declared part type, then the extension, then
// content sniffing.
func detectMediaType(declared, filename string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}
