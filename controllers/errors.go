package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/billiard-hall/services"
	"github.com/yeremiapane/billiard-hall/utils"
)

var statusByError = []struct {
	err    error
	status int
}{
	{services.ErrValidation, http.StatusBadRequest},
	{services.ErrNotFound, http.StatusNotFound},
	{services.ErrConflict, http.StatusConflict},
	{services.ErrInvalidState, http.StatusUnprocessableEntity},
	{services.ErrStorage, http.StatusServiceUnavailable},
}

// respondServiceError maps a service error onto its HTTP status and code.
// Unclassified errors are reported as 500 and logged.
func respondServiceError(c *gin.Context, err error) {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				utils.ErrorLogger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			}
			utils.RespondErrorCode(c, m.status, m.err.Error(), err)
			return
		}
	}
	utils.ErrorLogger.Errorf("%s %s: unexpected error: %v", c.Request.Method, c.Request.URL.Path, err)
	utils.RespondError(c, http.StatusInternalServerError, err)
}

func respondValidation(c *gin.Context, err error) {
	utils.RespondErrorCode(c, http.StatusBadRequest, services.ErrValidation.Error(), err)
}

// paramID reads a positive numeric path parameter. On failure it writes a 400
// and returns false.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondValidation(c, fmt.Errorf("%s must be a positive integer", name))
		return 0, false
	}
	return uint(id), true
}

// bindOptionalJSON binds the request body into dst when one was sent. An
// empty body leaves dst untouched.
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		respondValidation(c, err)
		return false
	}
	return true
}
