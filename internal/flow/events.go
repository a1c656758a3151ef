package flow

import "supervisor-console/internal/model"

// Event is anything the flow reacts to: user actions, upstream completions and ticks.
type Event interface {
	Name() string
}

// LoginSubmitted is the credentials form being submitted.
type LoginSubmitted struct {
	SupervisorID string
	Mobile       string
}

// LoginCompleted carries the login response for the attempt it was issued under.
type LoginCompleted struct {
	Attempt      string
	SupervisorID string
	Mobile       string
	Token        string
	Err          error
}

// VerifySubmitted is an OTP code being submitted.
type VerifySubmitted struct {
	Code string
}

// VerifyCompleted carries the verification response for its challenge.
type VerifyCompleted struct {
	ChallengeID string
	AccessToken string
	Err         error
}

// ResendRequested asks for a new OTP.
type ResendRequested struct{}

// ResendCompleted carries the resend response. Token is the replacement
// challenge token, empty when the upstream did not send one.
type ResendCompleted struct {
	ChallengeID string
	Token       string
	Err         error
}

// BackRequested leaves the OTP screen for the credentials form.
type BackRequested struct{}

// Tick is one elapsed second of the OTP countdown.
type Tick struct {
	ChallengeID string
}

// ProfileLoaded carries the supervisor details fetch result.
type ProfileLoaded struct {
	SessionID string
	Profile   model.SupervisorProfile
	Err       error
}

// ReadersLoaded carries the meter reader list fetch result.
type ReadersLoaded struct {
	SessionID string
	Readers   []model.MeterReader
	Err       error
}

// RefreshRequested re-fetches the reader list.
type RefreshRequested struct{}

// LogoutRequested ends the authenticated session.
type LogoutRequested struct{}

func (LoginSubmitted) Name() string   { return "login_submitted" }
func (LoginCompleted) Name() string   { return "login_completed" }
func (VerifySubmitted) Name() string  { return "verify_submitted" }
func (VerifyCompleted) Name() string  { return "verify_completed" }
func (ResendRequested) Name() string  { return "resend_requested" }
func (ResendCompleted) Name() string  { return "resend_completed" }
func (BackRequested) Name() string    { return "back_requested" }
func (Tick) Name() string             { return "tick" }
func (ProfileLoaded) Name() string    { return "profile_loaded" }
func (ReadersLoaded) Name() string    { return "readers_loaded" }
func (RefreshRequested) Name() string { return "refresh_requested" }
func (LogoutRequested) Name() string  { return "logout_requested" }
