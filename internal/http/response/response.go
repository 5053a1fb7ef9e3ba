package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/research-evidence-backend/internal/platform/apierr"
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

// RespondErr maps err through apierr; fallbackCode labels unexpected failures.
func RespondErr(c *gin.Context, fallbackCode string, err error) {
	ae := apierr.FromError(err, fallbackCode)
	if ae == nil {
		ae = apierr.New(http.StatusInternalServerError, fallbackCode, nil)
	}
	if ae.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	RespondError(c, ae.Status, ae.Code, ae.Err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
