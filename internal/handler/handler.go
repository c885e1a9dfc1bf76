// Package handler exposes the HTTP surface. Every JSON response uses the
// {success, message?, data} envelope; internal errors never reach clients.
package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hostelhub/internal/attendance"
	"hostelhub/internal/directory"
	"hostelhub/internal/queue"
)

// Handler wires services into gin routes.
type Handler struct {
	dir *directory.Service
	att *attendance.Service
	q   queue.Queue

	jwtIssuer   string
	jwtKey      string
	accessTTL   time.Duration
	qrImageSize int
}

// New creates a handler. q may be nil when no worker is deployed.
func New(dir *directory.Service, att *attendance.Service, q queue.Queue, jwtIssuer, jwtKey string, accessTTL time.Duration, qrImageSize int) *Handler {
	return &Handler{
		dir:         dir,
		att:         att,
		q:           q,
		jwtIssuer:   jwtIssuer,
		jwtKey:      jwtKey,
		accessTTL:   accessTTL,
		qrImageSize: qrImageSize,
	}
}

func ok(c *gin.Context, status int, message string, data any) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// failErr maps domain errors onto the envelope, hiding internals.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrForbidden):
		fail(c, http.StatusForbidden, "you are not authorized to perform this action")
	case errors.Is(err, directory.ErrNotFound):
		fail(c, http.StatusNotFound, "not found")
	case errors.Is(err, directory.ErrConflict):
		fail(c, http.StatusConflict, "already exists")
	case errors.Is(err, directory.ErrBadCredentials):
		fail(c, http.StatusUnauthorized, "invalid credentials")
	default:
		log.Printf("internal error: %v", err)
		fail(c, http.StatusInternalServerError, "internal server error")
	}
}
