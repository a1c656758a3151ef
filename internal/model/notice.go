package model

import "time"

// NoticeKind drives how a rendering layer styles a notice.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeFailure NoticeKind = "failure"
	NoticeInfo    NoticeKind = "info"
)

// NoticeCategory names what happened.
type NoticeCategory string

const (
	NoticeOTPSent            NoticeCategory = "otp_sent"
	NoticeLoginFailed        NoticeCategory = "login_failed"
	NoticeValidation         NoticeCategory = "validation"
	NoticeVerified           NoticeCategory = "verified"
	NoticeVerificationFailed NoticeCategory = "verification_failed"
	NoticeResent             NoticeCategory = "resent"
	NoticeResendFailed       NoticeCategory = "resend_failed"
	NoticeFetchFailed        NoticeCategory = "fetch_failed"
	NoticeLoggedOut          NoticeCategory = "logged_out"
)

// Notice is a short-lived, user-visible message.
type Notice struct {
	ID        string         `json:"id"`
	Kind      NoticeKind     `json:"kind"`
	Category  NoticeCategory `json:"category"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Cause     string         `json:"cause,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
