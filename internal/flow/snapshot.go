package flow

import (
	"fmt"
	"time"

	"supervisor-console/internal/model"
)

// OTPOp is the OTP-screen operation currently in flight. Verify and resend
// share one slot.
type OTPOp string

const (
	OTPIdle      OTPOp = ""
	OTPVerifying OTPOp = "verify"
	OTPResending OTPOp = "resend"
)

// Snapshot is an immutable view of the whole login flow. Reduce returns new
// snapshots and never mutates the one it was given, including pointed-to
// values and slices.
type Snapshot struct {
	State model.SessionState

	// LoggedOut
	LoginAttempt  string
	LoginInFlight bool

	// AwaitingOtp
	Pending     *model.PendingAuth
	Countdown   int
	OTPEntry    string
	OTPInFlight OTPOp

	// Authenticated
	Session         *model.AuthenticatedSession
	Profile         *model.SupervisorProfile
	ProfileLoading  bool
	Readers         []model.MeterReader
	ReadersLoading  bool
	ReadersFallback bool
}

// Initial is the LoggedOut snapshot the flow starts in.
func Initial() Snapshot {
	return Snapshot{State: model.StateLoggedOut}
}

// Validate checks that the state and the populated auth data agree.
func (s Snapshot) Validate() error {
	switch s.State {
	case model.StateLoggedOut:
		if s.Pending != nil || s.Session != nil {
			return fmt.Errorf("logged out with auth data present")
		}
	case model.StateAwaitingOTP:
		if s.Pending == nil || s.Session != nil {
			return fmt.Errorf("awaiting otp requires pending auth only")
		}
	case model.StateAuthenticated:
		if s.Session == nil || s.Pending != nil {
			return fmt.Errorf("authenticated requires session only")
		}
	default:
		return fmt.Errorf("unknown state %q", s.State)
	}
	if s.State != model.StateAuthenticated && (len(s.Readers) > 0 || s.Profile != nil) {
		return fmt.Errorf("session data retained in state %q", s.State)
	}
	if s.Countdown < 0 {
		return fmt.Errorf("negative countdown %d", s.Countdown)
	}
	return nil
}

// SupervisorID returns the supervisor the flow is about, if any.
func (s Snapshot) SupervisorID() string {
	switch {
	case s.Pending != nil:
		return s.Pending.SupervisorID
	case s.Session != nil:
		return s.Session.SupervisorID
	}
	return ""
}

// Expired reports whether the OTP challenge should be treated as stale.
func (s Snapshot) Expired(now time.Time) bool {
	if s.State != model.StateAwaitingOTP || s.Pending == nil {
		return false
	}
	return s.Countdown == 0 || !now.Before(s.Pending.ExpiresAt)
}

// CanResend reports whether a resend may be requested.
func (s Snapshot) CanResend() bool {
	return s.State == model.StateAwaitingOTP && s.Countdown == 0 && s.OTPInFlight == OTPIdle
}

// CanVerify reports whether a verification may be submitted, before looking at the code.
func (s Snapshot) CanVerify(now time.Time, opts Options) bool {
	if s.State != model.StateAwaitingOTP || s.OTPInFlight != OTPIdle {
		return false
	}
	return !opts.RejectExpiredOTP || !s.Expired(now)
}

// Dashboard summarises the reader list.
type Dashboard struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	OnField int `json:"onField"`
}

// Dashboard counts readers by status.
func (s Snapshot) Dashboard() Dashboard {
	d := Dashboard{Total: len(s.Readers)}
	for _, r := range s.Readers {
		switch r.Status {
		case model.ReaderActive:
			d.Active++
		case model.ReaderOnField:
			d.OnField++
		}
	}
	return d
}

// Clone returns a copy that shares nothing mutable with s.
func (s Snapshot) Clone() Snapshot {
	if s.Pending != nil {
		p := *s.Pending
		s.Pending = &p
	}
	if s.Session != nil {
		sess := *s.Session
		s.Session = &sess
	}
	if s.Profile != nil {
		p := *s.Profile
		s.Profile = &p
	}
	if s.Readers != nil {
		s.Readers = append([]model.MeterReader(nil), s.Readers...)
	}
	return s
}
