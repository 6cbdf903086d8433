package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classattendance/internal/auth"
	"classattendance/internal/pkg/errs"
)

type errorBody struct {
	Error string `json:"error"`
}

// abort maps err onto a status and message. Internal errors are attached to
// the context for the request log and never echoed to the client.
func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	status, msg := classify(err)
	c.AbortWithStatusJSON(status, errorBody{Error: msg})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errs.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errs.Is(err, errs.ErrInvalidSlot), errs.Is(err, errs.ErrInvalidReference), errs.Is(err, errs.ErrInvalidPayload):
		return http.StatusBadRequest, err.Error()
	case errs.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid token"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
