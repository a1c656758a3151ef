package flow

import "supervisor-console/internal/model"

// Effect is a side effect requested by Reduce and carried out by the Controller.
type Effect interface {
	effect()
}

// CallLogin submits credentials upstream.
type CallLogin struct {
	Attempt      string
	SupervisorID string
	Mobile       string
}

// CallVerify submits an OTP code authorised by the challenge token.
type CallVerify struct {
	ChallengeID  string
	Token        string
	SupervisorID string
	Mobile       string
	Code         string
}

// CallResend asks upstream for a new OTP.
type CallResend struct {
	ChallengeID  string
	SupervisorID string
	Mobile       string
}

// FetchProfile loads the supervisor details for a session.
type FetchProfile struct {
	SessionID    string
	SupervisorID string
	AccessToken  string
}

// FetchReaders loads the reader list for a session.
type FetchReaders struct {
	SessionID    string
	SupervisorID string
	AccessToken  string
}

// StartTicker (re)starts the once-per-second countdown for a challenge,
// replacing any running ticker.
type StartTicker struct {
	ChallengeID string
}

// StopTicker releases the countdown ticker.
type StopTicker struct{}

// Publish shows a notice.
type Publish struct {
	Notice model.Notice
}

func (CallLogin) effect()    {}
func (CallVerify) effect()   {}
func (CallResend) effect()   {}
func (FetchProfile) effect() {}
func (FetchReaders) effect() {}
func (StartTicker) effect()  {}
func (StopTicker) effect()   {}
func (Publish) effect()      {}
