package api

import (
	"time"

	"supervisor-console/internal/flow"
	"supervisor-console/internal/model"
	"supervisor-console/internal/parse"
)

// SessionView is what a rendering layer sees of the flow. It never carries tokens.
type SessionView struct {
	State         model.SessionState `json:"state"`
	SupervisorID  string             `json:"supervisorId,omitempty"`
	LoginInFlight bool               `json:"loginInFlight"`
	OTP           *OTPView           `json:"otp,omitempty"`
	Dashboard     *DashboardView     `json:"dashboard,omitempty"`
}

// OTPView describes the OTP screen.
type OTPView struct {
	MaskedMobile   string    `json:"maskedMobile"`
	Countdown      int       `json:"countdown"`
	CountdownLabel string    `json:"countdownLabel"`
	ExpiresAt      time.Time `json:"expiresAt"`
	Expired        bool      `json:"expired"`
	CanVerify      bool      `json:"canVerify"`
	CanResend      bool      `json:"canResend"`
	Verifying      bool      `json:"verifying"`
	Resending      bool      `json:"resending"`
}

// DashboardView describes the authenticated screen.
type DashboardView struct {
	Profile        *model.SupervisorProfile `json:"profile"`
	ProfileLoading bool                     `json:"profileLoading"`
	Readers        []ReaderView             `json:"readers"`
	ReadersLoading bool                     `json:"readersLoading"`
	Fallback       bool                     `json:"fallback"`
	Stats          flow.Dashboard           `json:"stats"`
}

// ReaderView is a meter reader with its display label.
type ReaderView struct {
	model.MeterReader
	StatusLabel string `json:"statusLabel"`
}

func newSessionView(s flow.Snapshot, now time.Time, opts flow.Options) SessionView {
	v := SessionView{
		State:         s.State,
		SupervisorID:  s.SupervisorID(),
		LoginInFlight: s.LoginInFlight,
	}

	switch s.State {
	case model.StateAwaitingOTP:
		v.OTP = &OTPView{
			MaskedMobile:   parse.MaskMobile(s.Pending.Mobile),
			Countdown:      s.Countdown,
			CountdownLabel: parse.Countdown(s.Countdown),
			ExpiresAt:      s.Pending.ExpiresAt,
			Expired:        s.Expired(now),
			CanVerify:      s.CanVerify(now, opts),
			CanResend:      s.CanResend(),
			Verifying:      s.OTPInFlight == flow.OTPVerifying,
			Resending:      s.OTPInFlight == flow.OTPResending,
		}
	case model.StateAuthenticated:
		readers := make([]ReaderView, 0, len(s.Readers))
		for _, r := range s.Readers {
			readers = append(readers, ReaderView{MeterReader: r, StatusLabel: parse.StatusLabel(string(r.Status))})
		}
		v.Dashboard = &DashboardView{
			Profile:        s.Profile,
			ProfileLoading: s.ProfileLoading,
			Readers:        readers,
			ReadersLoading: s.ReadersLoading,
			Fallback:       s.ReadersFallback,
			Stats:          s.Dashboard(),
		}
	}
	return v
}
