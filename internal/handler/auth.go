package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hostelhub/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates an admin or student and issues a session token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "email and password are required")
		return
	}

	id, err := h.dir.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}

	token, exp, err := auth.Issue(id.ID, id.Role, id.HostelID, h.jwtIssuer, h.jwtKey, h.accessTTL)
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusOK, "login successful", gin.H{
		"access_token": token,
		"expires_at":   exp.Unix(),
		"role":         id.Role,
	})
}
