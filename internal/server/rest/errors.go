package rest

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/gin-gonic/gin"
)

// writeError maps service errors to HTTP responses. Anything unrecognised is
// logged and reported as a bare 500.
func (h *handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, common.ErrorAlreadyExists):
		c.JSON(http.StatusBadRequest, errorBody("email already registered"))
	case errors.Is(err, common.ErrorInvalidCredentials):
		c.JSON(http.StatusUnauthorized, errorBody(common.ErrorInvalidCredentials.Error()))
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		unauthorized(c, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		c.JSON(http.StatusNotFound, errorBody("task not found"))
	default:
		h.log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, errorBody("internal error"))
	}
}
