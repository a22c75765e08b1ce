package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/AnTengye/quotepo/service"
	"github.com/gin-gonic/gin"
)

// statusFor maps a service error to the HTTP status shown to the user
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrTokenExchange),
		errors.Is(err, service.ErrTenantDiscovery),
		errors.Is(err, service.ErrSubmission):
		return http.StatusInternalServerError
	case errors.Is(err, service.ErrAuthorization),
		errors.Is(err, service.ErrSpreadsheetRead),
		errors.Is(err, service.ErrContactResolution),
		errors.Is(err, service.ErrNoPendingOrder):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// renderError writes err as a plain-text page, or as JSON under /api
func renderError(c *gin.Context, err error) {
	status := statusFor(err)
	c.Error(err)

	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.String(status, "Error: %s", err.Error())
}
