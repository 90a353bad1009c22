package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"collabrag/internal/app"
	"collabrag/internal/embedding"
	"collabrag/internal/extract"
	"collabrag/internal/model"
	"collabrag/internal/transport/http/response"
	"collabrag/internal/vectorindex"
)

func collabScope(c *gin.Context) (model.Scope, bool) {
	scope := model.CollabScope(strings.TrimSpace(c.Param("collabId")))
	if !scope.Valid() {
		return model.Scope{}, false
	}
	return scope, true
}

// writeServiceError maps service error categories to HTTP responses.
func writeServiceError(c *gin.Context, err error) {
	writeServiceErrorWithData(c, err, nil)
}

func writeServiceErrorWithData(c *gin.Context, err error, data any) {
	status, code, msg := classifyError(err)
	response.ErrorWithData(c, status, code, msg, data)
}

func classifyError(err error) (int, int, string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		return http.StatusBadRequest, response.CodeBadRequest, err.Error()
	case errors.Is(err, extract.ErrUnsupportedContentType):
		return http.StatusUnsupportedMediaType, response.CodeUnsupportedMedia, err.Error()
	case errors.Is(err, app.ErrFileNotFound):
		return http.StatusNotFound, response.CodeFileNotFound, "file not found"
	case errors.Is(err, app.ErrExtraction):
		return http.StatusInternalServerError, response.CodeExtractionFailed, "failed to extract file content"
	case errors.Is(err, app.ErrStorage):
		return http.StatusInternalServerError, response.CodeStorageFailed, "failed to store file"
	case errors.Is(err, app.ErrRetrieval):
		return http.StatusServiceUnavailable, response.CodeRetrievalFailed, "failed to retrieve context"
	case errors.Is(err, embedding.ErrProvider), errors.Is(err, vectorindex.ErrIndex):
		return http.StatusBadGateway, response.CodeIndexingFailed, "failed to index file"
	default:
		return http.StatusInternalServerError, response.CodeInternalServer, "internal server error"
	}
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}

// sseData frames a payload as one event, one data line per payload line.
func sseData(payload string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.ReplaceAll(payload, "\r\n", "\n"), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}
