package model

import "time"

// SessionState is the current phase of the supervisor login flow.
type SessionState string

const (
	StateLoggedOut     SessionState = "logged_out"
	StateAwaitingOTP   SessionState = "awaiting_otp"
	StateAuthenticated SessionState = "authenticated"
)

// PendingAuth exists while an OTP challenge is outstanding.
type PendingAuth struct {
	ChallengeID    string    `json:"challengeId"`
	SupervisorID   string    `json:"supervisorId"`
	Mobile         string    `json:"mobile"`
	ChallengeToken string    `json:"-"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// AuthenticatedSession holds the long-lived access token after verification.
type AuthenticatedSession struct {
	ID           string `json:"id"`
	SupervisorID string `json:"supervisorId"`
	AccessToken  string `json:"-"`
}
