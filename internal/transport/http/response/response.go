package response

import "github.com/gin-gonic/gin"

const (
	CodeOK               = 0
	CodeBadRequest       = 40000
	CodeUnauthorized     = 40100
	CodeFileNotFound     = 40401
	CodePayloadTooLarge  = 41300
	CodeUnsupportedMedia = 41500
	CodeInternalServer   = 50000
	CodeStorageFailed    = 50001
	CodeExtractionFailed = 50002
	CodeIndexingFailed   = 50003
	CodeRetrievalFailed  = 50301
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, APIResponse{
		Code:    CodeOK,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	ErrorWithData(c, httpStatus, code, message, nil)
}

// ErrorWithData reports a failure together with whatever the client still
// needs, such as the record that was created before the failure.
func ErrorWithData(c *gin.Context, httpStatus, code int, message string, data interface{}) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}
