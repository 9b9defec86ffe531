package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/majorgraph-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr unwraps an *apierr.Error when present, else responds with the fallback status
// and code.
func RespondErr(c *gin.Context, err error, status int, code string) {
	if ae, ok := apierr.From(err); ok {
		RespondError(c, ae.Status, ae.Code, ae)
		return
	}
	RespondError(c, status, code, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
