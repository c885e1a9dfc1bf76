package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hostelhub/internal/auth"
	"hostelhub/internal/directory"
	"hostelhub/internal/qr"
)

type registerStudentRequest struct {
	FullName   string `json:"fullName" binding:"required"`
	RollNumber string `json:"rollNumber" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Phone      string `json:"phoneNumber" binding:"required"`
}

// RegisterStudent registers a student in the admin's hostel; the QR token is
// issued here, once, for the student's lifetime.
func (h *Handler) RegisterStudent(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	var req registerStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "name, roll number, email and phone are required")
		return
	}

	student, err := h.dir.RegisterStudent(c.Request.Context(), directory.RegisterInput{
		HostelID:   claims.HostelID,
		FullName:   req.FullName,
		RollNumber: req.RollNumber,
		Email:      req.Email,
		Phone:      req.Phone,
	})
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusCreated, "student registered successfully", student)
}

// ListStudents returns all students of the admin's hostel.
func (h *Handler) ListStudents(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	students, err := h.dir.ListStudents(c.Request.Context(), claims.HostelID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "", students)
}

// MyQR renders the calling student's identity token as a PNG QR image. The
// token is a capability credential; it is only ever shown to its owner.
func (h *Handler) MyQR(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	student, err := h.dir.StudentByID(c.Request.Context(), claims.Subject)
	if err != nil {
		failErr(c, err)
		return
	}

	png, err := qr.Encode(student.QRToken, h.qrImageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

type createAdminRequest struct {
	Email        string   `json:"email" binding:"required,email"`
	Name         string   `json:"name"`
	Password     string   `json:"password" binding:"required,min=8"`
	Capabilities []string `json:"capabilities"`
}

// CreateAdmin creates another admin in the caller's hostel with an explicit
// capability list (e.g. "qrscans").
func (h *Handler) CreateAdmin(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	var req createAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "email and a password of at least 8 characters are required")
		return
	}

	admin, err := h.dir.CreateAdmin(c.Request.Context(), directory.CreateAdminInput{
		HostelID:     claims.HostelID,
		Email:        req.Email,
		Name:         req.Name,
		Password:     req.Password,
		Capabilities: req.Capabilities,
	})
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusCreated, "admin created", admin)
}
