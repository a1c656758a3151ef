package flow

import (
	"time"

	"github.com/google/uuid"

	"supervisor-console/internal/model"
	"supervisor-console/internal/parse"
	"supervisor-console/internal/upstream"
)

// Options tunes the flow.
type Options struct {
	// OTPCountdown is the number of seconds before resend becomes available.
	OTPCountdown int
	// ChallengeTTL is used as the challenge lifetime when the token carries no exp claim.
	ChallengeTTL time.Duration
	// FallbackReaders populates demo readers when the reader list cannot be loaded.
	FallbackReaders bool
	// RejectExpiredOTP refuses verification locally once the challenge is stale.
	RejectExpiredOTP bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		OTPCountdown:     300,
		ChallengeTTL:     300 * time.Second,
		FallbackReaders:  true,
		RejectExpiredOTP: true,
	}
}

// Env supplies the impure inputs of a reduction.
type Env struct {
	Now   time.Time
	NewID func() string
}

func (e Env) id() string {
	if e.NewID == nil {
		return uuid.NewString()
	}
	return e.NewID()
}

func (e Env) now() time.Time {
	if e.Now.IsZero() {
		return time.Now()
	}
	return e.Now
}

// Reduce applies ev to s and returns the next snapshot together with the
// effects to run. s is never modified. On error the returned snapshot is s,
// although effects (a notice) may still be returned for validation failures.
func Reduce(s Snapshot, ev Event, opts Options, env Env) (Snapshot, []Effect, error) {
	switch ev := ev.(type) {
	case LoginSubmitted:
		return submitLogin(s, ev, env)
	case LoginCompleted:
		return completeLogin(s, ev, opts, env)
	case VerifySubmitted:
		return submitVerify(s, ev, opts, env)
	case VerifyCompleted:
		return completeVerify(s, ev, env)
	case ResendRequested:
		return requestResend(s)
	case ResendCompleted:
		return completeResend(s, ev, opts, env)
	case BackRequested:
		if s.State != model.StateAwaitingOTP {
			return s, nil, ErrInvalidTransition
		}
		return Initial(), []Effect{StopTicker{}}, nil
	case Tick:
		return tick(s, ev)
	case ProfileLoaded:
		return loadProfile(s, ev)
	case ReadersLoaded:
		return loadReaders(s, ev, opts)
	case RefreshRequested:
		return refresh(s)
	case LogoutRequested:
		if s.State != model.StateAuthenticated {
			return s, nil, ErrInvalidTransition
		}
		return Initial(), []Effect{
			publish(model.NoticeSuccess, model.NoticeLoggedOut, "Logged Out", "You have been successfully logged out.", ""),
		}, nil
	}
	return s, nil, ErrInvalidTransition
}

func submitLogin(s Snapshot, ev LoginSubmitted, env Env) (Snapshot, []Effect, error) {
	if s.State != model.StateLoggedOut {
		return s, nil, ErrInvalidTransition
	}
	if s.LoginInFlight {
		return s, nil, ErrBusy
	}
	id, mobile, err := parse.Credentials(ev.SupervisorID, ev.Mobile)
	if err != nil {
		return s, []Effect{
			publish(model.NoticeFailure, model.NoticeValidation, "Missing Details", "Please enter your supervisor ID and mobile number.", ""),
		}, ErrValidation
	}

	next := s.Clone()
	next.LoginAttempt = env.id()
	next.LoginInFlight = true
	return next, []Effect{CallLogin{Attempt: next.LoginAttempt, SupervisorID: id, Mobile: mobile}}, nil
}

func completeLogin(s Snapshot, ev LoginCompleted, opts Options, env Env) (Snapshot, []Effect, error) {
	if s.State != model.StateLoggedOut || !s.LoginInFlight || ev.Attempt != s.LoginAttempt {
		return s, nil, ErrStale
	}

	next := s.Clone()
	next.LoginInFlight = false
	next.LoginAttempt = ""
	if ev.Err != nil || ev.Token == "" {
		return next, []Effect{
			publish(model.NoticeFailure, model.NoticeLoginFailed, "Login Failed", "Please check your supervisor ID and mobile number.", failureCause(ev.Err)),
		}, nil
	}

	next.State = model.StateAwaitingOTP
	next.Pending = &model.PendingAuth{
		ChallengeID:    env.id(),
		SupervisorID:   ev.SupervisorID,
		Mobile:         ev.Mobile,
		ChallengeToken: ev.Token,
		ExpiresAt:      challengeExpiry(ev.Token, env.now(), opts.ChallengeTTL),
	}
	next.Countdown = opts.OTPCountdown
	next.OTPEntry = ""
	next.OTPInFlight = OTPIdle
	return next, []Effect{
		StartTicker{ChallengeID: next.Pending.ChallengeID},
		publish(model.NoticeSuccess, model.NoticeOTPSent, "OTP Sent", "Please check your mobile for the verification code.", ""),
	}, nil
}

func submitVerify(s Snapshot, ev VerifySubmitted, opts Options, env Env) (Snapshot, []Effect, error) {
	if s.State != model.StateAwaitingOTP {
		return s, nil, ErrInvalidTransition
	}
	if s.OTPInFlight != OTPIdle {
		return s, nil, ErrBusy
	}
	if !parse.ValidOTP(ev.Code) {
		return s, []Effect{
			publish(model.NoticeFailure, model.NoticeValidation, "Invalid OTP", "Please enter a valid 6-digit OTP.", ""),
		}, ErrValidation
	}
	if opts.RejectExpiredOTP && s.Expired(env.now()) {
		return s, []Effect{
			publish(model.NoticeFailure, model.NoticeValidation, "OTP Expired", "The OTP has expired. Please request a new one.", ""),
		}, ErrValidation
	}

	next := s.Clone()
	next.OTPEntry = ev.Code
	next.OTPInFlight = OTPVerifying
	p := next.Pending
	return next, []Effect{CallVerify{
		ChallengeID:  p.ChallengeID,
		Token:        p.ChallengeToken,
		SupervisorID: p.SupervisorID,
		Mobile:       p.Mobile,
		Code:         ev.Code,
	}}, nil
}

func completeVerify(s Snapshot, ev VerifyCompleted, env Env) (Snapshot, []Effect, error) {
	if s.State != model.StateAwaitingOTP || s.OTPInFlight != OTPVerifying || s.Pending.ChallengeID != ev.ChallengeID {
		return s, nil, ErrStale
	}

	if ev.Err != nil || ev.AccessToken == "" {
		next := s.Clone()
		next.OTPInFlight = OTPIdle
		next.OTPEntry = ""
		return next, []Effect{
			publish(model.NoticeFailure, model.NoticeVerificationFailed, "Verification Failed", "Invalid OTP. Please try again.", failureCause(ev.Err)),
		}, nil
	}

	session := &model.AuthenticatedSession{
		ID:           env.id(),
		SupervisorID: s.Pending.SupervisorID,
		AccessToken:  ev.AccessToken,
	}
	next := Snapshot{
		State:          model.StateAuthenticated,
		Session:        session,
		ProfileLoading: true,
		ReadersLoading: true,
	}
	return next, []Effect{
		StopTicker{},
		publish(model.NoticeSuccess, model.NoticeVerified, "Verification Successful", "Welcome to the supervisor dashboard!", ""),
		FetchProfile{SessionID: session.ID, SupervisorID: session.SupervisorID, AccessToken: session.AccessToken},
		FetchReaders{SessionID: session.ID, SupervisorID: session.SupervisorID, AccessToken: session.AccessToken},
	}, nil
}

func requestResend(s Snapshot) (Snapshot, []Effect, error) {
	if s.State != model.StateAwaitingOTP {
		return s, nil, ErrInvalidTransition
	}
	if !s.CanResend() {
		return s, nil, ErrBusy
	}

	next := s.Clone()
	next.OTPInFlight = OTPResending
	return next, []Effect{CallResend{
		ChallengeID:  next.Pending.ChallengeID,
		SupervisorID: next.Pending.SupervisorID,
		Mobile:       next.Pending.Mobile,
	}}, nil
}

func completeResend(s Snapshot, ev ResendCompleted, opts Options, env Env) (Snapshot, []Effect, error) {
	if s.State != model.StateAwaitingOTP || s.OTPInFlight != OTPResending || s.Pending.ChallengeID != ev.ChallengeID {
		return s, nil, ErrStale
	}

	next := s.Clone()
	next.OTPInFlight = OTPIdle
	if ev.Err != nil {
		return next, []Effect{
			publish(model.NoticeFailure, model.NoticeResendFailed, "Resend Failed", "Failed to resend OTP. Please try again.", failureCause(ev.Err)),
		}, nil
	}

	// A new challenge id makes ticks and completions of the old countdown stale.
	next.Pending.ChallengeID = env.id()
	if ev.Token != "" {
		next.Pending.ChallengeToken = ev.Token
	}
	next.Pending.ExpiresAt = challengeExpiry(next.Pending.ChallengeToken, env.now(), opts.ChallengeTTL)
	next.Countdown = opts.OTPCountdown
	next.OTPEntry = ""
	return next, []Effect{
		StartTicker{ChallengeID: next.Pending.ChallengeID},
		publish(model.NoticeSuccess, model.NoticeResent, "OTP Resent", "A new OTP has been sent to your mobile number.", ""),
	}, nil
}

func tick(s Snapshot, ev Tick) (Snapshot, []Effect, error) {
	if s.State != model.StateAwaitingOTP || s.Pending.ChallengeID != ev.ChallengeID {
		return s, nil, ErrStale
	}
	if s.Countdown == 0 {
		return s, nil, nil
	}

	next := s.Clone()
	next.Countdown--
	if next.Countdown == 0 {
		return next, []Effect{StopTicker{}}, nil
	}
	return next, nil, nil
}

func loadProfile(s Snapshot, ev ProfileLoaded) (Snapshot, []Effect, error) {
	if s.State != model.StateAuthenticated || !s.ProfileLoading || s.Session.ID != ev.SessionID {
		return s, nil, ErrStale
	}

	next := s.Clone()
	next.ProfileLoading = false
	if ev.Err == nil {
		profile := ev.Profile
		next.Profile = &profile
	}
	return next, nil, nil
}

func loadReaders(s Snapshot, ev ReadersLoaded, opts Options) (Snapshot, []Effect, error) {
	if s.State != model.StateAuthenticated || !s.ReadersLoading || s.Session.ID != ev.SessionID {
		return s, nil, ErrStale
	}

	next := s.Clone()
	next.ReadersLoading = false
	if ev.Err != nil {
		if opts.FallbackReaders {
			next.Readers = FallbackReaders()
			next.ReadersFallback = true
		}
		return next, []Effect{
			publish(model.NoticeFailure, model.NoticeFetchFailed, "Error", "Failed to load meter readers. Please try again.", failureCause(ev.Err)),
		}, nil
	}

	next.Readers = append([]model.MeterReader{}, ev.Readers...)
	next.ReadersFallback = false
	return next, nil, nil
}

func refresh(s Snapshot) (Snapshot, []Effect, error) {
	if s.State != model.StateAuthenticated {
		return s, nil, ErrInvalidTransition
	}
	if s.ReadersLoading {
		return s, nil, ErrBusy
	}

	next := s.Clone()
	next.ReadersLoading = true
	sess := next.Session
	return next, []Effect{FetchReaders{SessionID: sess.ID, SupervisorID: sess.SupervisorID, AccessToken: sess.AccessToken}}, nil
}

func publish(kind model.NoticeKind, category model.NoticeCategory, title, message, cause string) Publish {
	return Publish{Notice: model.Notice{
		Kind:     kind,
		Category: category,
		Title:    title,
		Message:  message,
		Cause:    cause,
	}}
}

// failureCause names the upstream error kind; an empty token on a 2xx is malformed.
func failureCause(err error) string {
	if err == nil {
		return string(upstream.KindMalformed)
	}
	return string(upstream.KindOf(err))
}
