package server

import (
	"errors"
	"net/http"

	exportdomain "github.com/exportflowlabs/exportflow/internal/export/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HTTPError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *HTTPError) Error() string { return e.Message }

var (
	ErrUnauthorized = &HTTPError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "missing or invalid API key"}
	ErrScope        = &HTTPError{Status: http.StatusForbidden, Code: "insufficient_scope", Message: "API key lacks the required scope"}
	ErrBadRequest   = &HTTPError{Status: http.StatusBadRequest, Code: "bad_request", Message: "malformed request"}
)

// AbortWithError translates engine errors into the HTTP surface. The mapping
// is part of the API contract: 409 means the ledger refused the edge, 422
// means the payload was short of evidence.
func AbortWithError(c *gin.Context, err error) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		c.AbortWithStatusJSON(httpErr.Status, gin.H{"error": httpErr})
		return
	}

	status := http.StatusInternalServerError
	code := "internal"
	switch {
	case errors.Is(err, exportdomain.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, exportdomain.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, exportdomain.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, exportdomain.ErrValidation):
		status, code = http.StatusUnprocessableEntity, "validation_failed"
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Internal detail stays in the logs.
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": msg}})
}
