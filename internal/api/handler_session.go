package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"supervisor-console/internal/flow"
	"supervisor-console/internal/logger"
)

type loginRequest struct {
	SupervisorID string `json:"supervisorId"`
	Mobile       string `json:"mobile"`
}

type verifyRequest struct {
	OTP string `json:"otp"`
}

// GetSession handles GET /api/session.
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, newSessionView(h.flow.Snapshot(), h.now(), h.opts))
}

// Login handles POST /api/session/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.dispatch(c, flow.LoginSubmitted{SupervisorID: req.SupervisorID, Mobile: req.Mobile}, http.StatusAccepted)
}

// VerifyOTP handles POST /api/session/otp.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.dispatch(c, flow.VerifySubmitted{Code: req.OTP}, http.StatusAccepted)
}

// ResendOTP handles POST /api/session/otp/resend.
func (h *Handler) ResendOTP(c *gin.Context) {
	h.dispatch(c, flow.ResendRequested{}, http.StatusAccepted)
}

// Back handles POST /api/session/back.
func (h *Handler) Back(c *gin.Context) {
	h.dispatch(c, flow.BackRequested{}, http.StatusOK)
}

// Refresh handles POST /api/session/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	h.dispatch(c, flow.RefreshRequested{}, http.StatusAccepted)
}

// Logout handles POST /api/session/logout.
func (h *Handler) Logout(c *gin.Context) {
	h.dispatch(c, flow.LogoutRequested{}, http.StatusOK)
}

// dispatch submits ev and answers with the resulting view. Requests that
// start an upstream call answer 202 since the outcome arrives later.
func (h *Handler) dispatch(c *gin.Context, ev flow.Event, okStatus int) {
	snap, err := h.flow.Dispatch(c.Request.Context(), ev)
	view := newSessionView(snap, h.now(), h.opts)
	if err == nil {
		c.JSON(okStatus, view)
		return
	}

	status := statusFor(err)
	if status == http.StatusServiceUnavailable {
		logger.Log.WithError(err).WithField("event", ev.Name()).Error("Flow controller unavailable")
	}
	c.JSON(status, gin.H{"error": err.Error(), "session": view})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, flow.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, flow.ErrInvalidTransition), errors.Is(err, flow.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, flow.ErrStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
