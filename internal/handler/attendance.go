package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hostelhub/internal/attendance"
	"hostelhub/internal/auth"
	"hostelhub/internal/qr"
	"hostelhub/internal/queue"
)

type scanRequest struct {
	QRToken string `json:"qrToken" binding:"required"`
}

// Scan resolves a QR token and returns the student's current status for
// today. Read-only by design: marking requires the explicit toggle call, so a
// single camera misread can never flip attendance state.
func (h *Handler) Scan(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "QR token is required")
		return
	}

	res, err := h.att.LookupStatus(c.Request.Context(), req.QRToken, claims.Subject)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "attendance status fetched", res)
}

// maxFrameBytes bounds uploaded camera frames.
const maxFrameBytes = 5 << 20

// ScanImage accepts a raw camera frame (PNG/JPEG, multipart field "frame" or
// request body), decodes the QR code server-side, and then behaves exactly
// like Scan.
func (h *Handler) ScanImage(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	var data []byte
	if strings.Contains(c.ContentType(), "multipart/form-data") {
		file, _, err := c.Request.FormFile("frame")
		if err != nil {
			fail(c, http.StatusBadRequest, "frame file field is required")
			return
		}
		defer file.Close()
		data, err = io.ReadAll(io.LimitReader(file, maxFrameBytes))
		if err != nil {
			failErr(c, err)
			return
		}
	} else {
		var err error
		data, err = io.ReadAll(io.LimitReader(c.Request.Body, maxFrameBytes))
		if err != nil || len(data) == 0 {
			fail(c, http.StatusBadRequest, "image body is required")
			return
		}
	}

	token, err := qr.DecodeBytes(data)
	if err != nil {
		if errors.Is(err, qr.ErrNoCode) {
			fail(c, http.StatusUnprocessableEntity, "no QR code found in image")
			return
		}
		fail(c, http.StatusBadRequest, "could not read image")
		return
	}

	res, err := h.att.LookupStatus(c.Request.Context(), token, claims.Subject)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "attendance status fetched", res)
}

type toggleRequest struct {
	StudentID string `json:"studentId" binding:"required"`
}

// Toggle creates today's entry as Present or flips an existing one. The sole
// mutating operation on the ledger.
func (h *Handler) Toggle(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "student ID is required")
		return
	}

	res, err := h.att.Toggle(c.Request.Context(), req.StudentID, claims.Subject)
	if err != nil {
		failErr(c, err)
		return
	}

	if h.q != nil {
		body, _ := json.Marshal(attendance.ToggleAudit{
			StudentID: res.StudentID,
			HostelID:  res.HostelID,
			Day:       res.Day,
			Status:    res.Status,
			MarkedBy:  claims.Subject,
		})
		if err := h.q.Publish(c.Request.Context(), queue.Message{Type: attendance.AuditMessageType, Body: body}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
	}

	ok(c, http.StatusOK, "attendance status updated", res)
}

// MyHistory returns the calling student's entries ascending by day. Days with
// no entry are implicitly Absent; the calendar view synthesizes them.
func (h *Handler) MyHistory(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	entries, err := h.att.StudentHistory(c.Request.Context(), claims.Subject)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "", entries)
}

// StudentHistory returns one student's entries for admins of the same hostel.
func (h *Handler) StudentHistory(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	entries, err := h.att.StudentHistoryForAdmin(c.Request.Context(), c.Param("id"), claims.HostelID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "", entries)
}

// TodaySummary returns today's marked/present/absent counts for the admin's
// hostel. Only materialized entries are counted; never-scanned students are
// outside totalMarked.
func (h *Handler) TodaySummary(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	sum, err := h.att.TodaySummary(c.Request.Context(), claims.HostelID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "", sum)
}
