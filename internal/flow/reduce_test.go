package flow

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supervisor-console/internal/model"
	"supervisor-console/internal/upstream"
)

var testNow = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func testEnv() Env {
	n := 0
	return Env{
		Now: testNow,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}
}

// step reduces ev and checks the state invariants of the result.
func step(t *testing.T, s Snapshot, ev Event, env Env) (Snapshot, []Effect, error) {
	t.Helper()
	next, effects, err := Reduce(s, ev, DefaultOptions(), env)
	require.NoError(t, next.Validate())
	return next, effects, err
}

func notices(effects []Effect) []model.Notice {
	var out []model.Notice
	for _, eff := range effects {
		if p, ok := eff.(Publish); ok {
			out = append(out, p.Notice)
		}
	}
	return out
}

func awaitingOTP(t *testing.T, env Env) Snapshot {
	t.Helper()
	s, effects, err := step(t, Initial(), LoginSubmitted{SupervisorID: "S1", Mobile: "9998887770"}, env)
	require.NoError(t, err)
	call := effects[0].(CallLogin)

	s, _, err = step(t, s, LoginCompleted{Attempt: call.Attempt, SupervisorID: "S1", Mobile: "9998887770", Token: "T1"}, env)
	require.NoError(t, err)
	require.Equal(t, model.StateAwaitingOTP, s.State)
	return s
}

func authenticated(t *testing.T, env Env) Snapshot {
	t.Helper()
	s := awaitingOTP(t, env)
	s, _, err := step(t, s, VerifySubmitted{Code: "123456"}, env)
	require.NoError(t, err)
	s, _, err = step(t, s, VerifyCompleted{ChallengeID: s.Pending.ChallengeID, AccessToken: "A1"}, env)
	require.NoError(t, err)
	require.Equal(t, model.StateAuthenticated, s.State)
	return s
}

func TestReduce_LoginSuccess(t *testing.T) {
	env := testEnv()
	s, effects, err := step(t, Initial(), LoginSubmitted{SupervisorID: " S1 ", Mobile: "9998887770"}, env)
	require.NoError(t, err)
	assert.True(t, s.LoginInFlight)
	require.Len(t, effects, 1)
	assert.Equal(t, CallLogin{Attempt: "id-1", SupervisorID: "S1", Mobile: "9998887770"}, effects[0])

	s, effects, err = step(t, s, LoginCompleted{Attempt: "id-1", SupervisorID: "S1", Mobile: "9998887770", Token: "T1"}, env)
	require.NoError(t, err)
	assert.Equal(t, model.StateAwaitingOTP, s.State)
	assert.False(t, s.LoginInFlight)
	assert.Equal(t, 300, s.Countdown)
	require.NotNil(t, s.Pending)
	assert.Equal(t, "T1", s.Pending.ChallengeToken)
	assert.Equal(t, "S1", s.Pending.SupervisorID)
	assert.Equal(t, testNow.Add(300*time.Second), s.Pending.ExpiresAt)

	require.Len(t, effects, 2)
	assert.Equal(t, StartTicker{ChallengeID: s.Pending.ChallengeID}, effects[0])
	assert.Equal(t, model.NoticeOTPSent, notices(effects)[0].Category)
}

func TestReduce_LoginValidation(t *testing.T) {
	s, effects, err := step(t, Initial(), LoginSubmitted{SupervisorID: "  ", Mobile: "9998887770"}, testEnv())
	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, s.LoginInFlight)
	require.Len(t, effects, 1)
	assert.Equal(t, model.NoticeValidation, notices(effects)[0].Category)
}

func TestReduce_LoginSingleFlight(t *testing.T) {
	env := testEnv()
	s, _, err := step(t, Initial(), LoginSubmitted{SupervisorID: "S1", Mobile: "1"}, env)
	require.NoError(t, err)

	_, effects, err := step(t, s, LoginSubmitted{SupervisorID: "S1", Mobile: "1"}, env)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Empty(t, effects)
}

func TestReduce_LoginFailures(t *testing.T) {
	tests := []struct {
		name  string
		token string
		err   error
		cause string
	}{
		{"missing token", "", nil, "malformed"},
		{"rejected", "", &upstream.Error{Op: "login", Kind: upstream.KindRejected, StatusCode: 401}, "rejected"},
		{"transport", "", errors.New("connection refused"), "transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testEnv()
			s, _, err := step(t, Initial(), LoginSubmitted{SupervisorID: "S1", Mobile: "1"}, env)
			require.NoError(t, err)

			s, effects, err := step(t, s, LoginCompleted{Attempt: s.LoginAttempt, Token: tt.token, Err: tt.err}, env)
			require.NoError(t, err)
			assert.Equal(t, model.StateLoggedOut, s.State)
			assert.Nil(t, s.Pending)
			assert.False(t, s.LoginInFlight)

			n := notices(effects)
			require.Len(t, n, 1)
			assert.Equal(t, model.NoticeLoginFailed, n[0].Category)
			assert.Equal(t, model.NoticeFailure, n[0].Kind)
			assert.Equal(t, tt.cause, n[0].Cause)
		})
	}
}

func TestReduce_StaleLoginCompletion(t *testing.T) {
	env := testEnv()
	s, _, err := step(t, Initial(), LoginSubmitted{SupervisorID: "S1", Mobile: "1"}, env)
	require.NoError(t, err)

	next, effects, err := step(t, s, LoginCompleted{Attempt: "other", Token: "T1"}, env)
	assert.ErrorIs(t, err, ErrStale)
	assert.Equal(t, s, next)
	assert.Empty(t, effects)
}

func TestReduce_ChallengeExpiryFromJWT(t *testing.T) {
	exp := testNow.Add(90 * time.Second).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "S1",
		"exp": exp.Unix(),
	}).SignedString([]byte("upstream-secret"))
	require.NoError(t, err)

	env := testEnv()
	s, _, err := step(t, Initial(), LoginSubmitted{SupervisorID: "S1", Mobile: "1"}, env)
	require.NoError(t, err)
	s, _, err = step(t, s, LoginCompleted{Attempt: s.LoginAttempt, SupervisorID: "S1", Mobile: "1", Token: token}, env)
	require.NoError(t, err)

	assert.True(t, exp.Equal(s.Pending.ExpiresAt))
}

func TestReduce_VerifySuccess(t *testing.T) {
	env := testEnv()
	s := awaitingOTP(t, env)
	challenge := s.Pending.ChallengeID

	s, effects, err := step(t, s, VerifySubmitted{Code: "123456"}, env)
	require.NoError(t, err)
	assert.Equal(t, OTPVerifying, s.OTPInFlight)
	require.Len(t, effects, 1)
	assert.Equal(t, CallVerify{ChallengeID: challenge, Token: "T1", SupervisorID: "S1", Mobile: "9998887770", Code: "123456"}, effects[0])

	s, effects, err = step(t, s, VerifyCompleted{ChallengeID: challenge, AccessToken: "A1"}, env)
	require.NoError(t, err)
	assert.Equal(t, model.StateAuthenticated, s.State)
	assert.Nil(t, s.Pending)
	require.NotNil(t, s.Session)
	assert.Equal(t, "A1", s.Session.AccessToken)
	assert.Equal(t, "S1", s.Session.SupervisorID)
	assert.True(t, s.ProfileLoading)
	assert.True(t, s.ReadersLoading)

	require.Len(t, effects, 4)
	assert.Equal(t, StopTicker{}, effects[0])
	assert.Equal(t, model.NoticeVerified, notices(effects)[0].Category)
	assert.Equal(t, FetchProfile{SessionID: s.Session.ID, SupervisorID: "S1", AccessToken: "A1"}, effects[2])
	assert.Equal(t, FetchReaders{SessionID: s.Session.ID, SupervisorID: "S1", AccessToken: "A1"}, effects[3])
}

func TestReduce_VerifyRejectsMalformedCode(t *testing.T) {
	env := testEnv()
	s := awaitingOTP(t, env)

	for _, code := range []string{"12", "1234567", "12345a", "", "１２３４５６"} {
		next, effects, err := step(t, s, VerifySubmitted{Code: code}, env)
		assert.ErrorIs(t, err, ErrValidation, code)
		assert.Equal(t, s, next)
		require.Len(t, effects, 1)
		_, isCall := effects[0].(CallVerify)
		assert.False(t, isCall)
		assert.Equal(t, "Invalid OTP", notices(effects)[0].Title)
	}
}

func TestReduce_VerifyFailureClearsCode(t *testing.T) {
	env := testEnv()
	s := awaitingOTP(t, env)
	s, _, err := step(t, s, VerifySubmitted{Code: "654321"}, env)
	require.NoError(t, err)

	s, effects, err := step(t, s, VerifyCompleted{ChallengeID: s.Pending.ChallengeID, Err: &upstream.Error{Kind: upstream.KindRejected, StatusCode: 400}}, env)
	require.NoError(t, err)
	assert.Equal(t, model.StateAwaitingOTP, s.State)
	assert.Empty(t, s.OTPEntry)
	assert.Equal(t, OTPIdle, s.OTPInFlight)
	assert.Equal(t, model.NoticeVerificationFailed, notices(effects)[0].Category)
}

func TestReduce_VerifyExpiredChallenge(t *testing.T) {
	env := testEnv()
	s := awaitingOTP(t, env)
	s.Countdown = 0

	_, effects, err := step(t, s, VerifySubmitted{Code: "123456"}, env)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "OTP Expired", notices(effects)[0].Title)

	opts := DefaultOptions()
	opts.RejectExpiredOTP = false
	_, effects, err = Reduce(s, VerifySubmitted{Code: "123456"}, opts, env)
	require.NoError(t, err)
	assert.IsType(t, CallVerify{}, effects[0])
}

func TestReduce_VerifyAfterExpiresAt(t *testing.T) {
	env := testEnv()
	s := awaitingOTP(t, env)

	late := env
	late.Now = s.Pending.ExpiresAt
	_, _, err := step(t, s, VerifySubmitted{Code: "123456"}, late)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReduce_CountdownTicks(t *testing.T) {
	env := testEnv()
	s := awaitingOTP(t, env)
	challenge := s.Pending.ChallengeID

	var effects []Effect
	var err error
	for i := 1; i <= 300; i++ {
		s, effects, err = step(t, s, Tick{ChallengeID: challenge}, env)
		require.NoError(t, err)
		require.Equal(t, 300-i, s.Countdown)
	}
	assert.Equal(t, []Effect{StopTicker{}}, effects)

	s, effects, err = step(t, s, Tick{ChallengeID: challenge}, env)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Countdown)
	assert.Empty(t, effects)
}

func TestReduce_TickForOldChallengeIsStale(t *testing.T) {
	env := testEnv()
	s := awaitingOTP(t, env)

	next, _, err := step(t, s, Tick{ChallengeID: "old"}, env)
	assert.ErrorIs(t, err, ErrStale)
	assert.Equal(t, 300, next.Countdown)

	_, _, err = step(t, Initial(), Tick{ChallengeID: "old"}, env)
	assert.ErrorIs(t, err, ErrStale)
}

func TestReduce_ResendGuards(t *testing.T) {
	env := testEnv()
	s := awaitingOTP(t, env)

	_, _, err := step(t, s, ResendRequested{}, env)
	assert.ErrorIs(t, err, ErrBusy, "countdown still running")

	s.Countdown = 0
	s.OTPInFlight = OTPVerifying
	_, _, err = step(t, s, ResendRequested{}, env)
	assert.ErrorIs(t, err, ErrBusy, "verify in flight")

	_, _, err = step(t, Initial(), ResendRequested{}, env)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReduce_ResendSuccess(t *testing.T) {
	env := testEnv()
	s := awaitingOTP(t, env)
	old := s.Pending.ChallengeID
	s.Countdown = 0
	s.OTPEntry = "111111"

	s, effects, err := step(t, s, ResendRequested{}, env)
	require.NoError(t, err)
	assert.Equal(t, OTPResending, s.OTPInFlight)
	assert.Equal(t, CallResend{ChallengeID: old, SupervisorID: "S1", Mobile: "9998887770"}, effects[0])

	_, _, err = step(t, s, VerifySubmitted{Code: "123456"}, env)
	assert.ErrorIs(t, err, ErrBusy)

	s, effects, err = step(t, s, ResendCompleted{ChallengeID: old, Token: "T2"}, env)
	require.NoError(t, err)
	assert.Equal(t, model.StateAwaitingOTP, s.State)
	assert.Equal(t, 300, s.Countdown)
	assert.Empty(t, s.OTPEntry)
	assert.Equal(t, "T2", s.Pending.ChallengeToken)
	assert.NotEqual(t, old, s.Pending.ChallengeID)
	assert.Equal(t, StartTicker{ChallengeID: s.Pending.ChallengeID}, effects[0])
	assert.Equal(t, model.NoticeResent, notices(effects)[0].Category)

	_, _, err = step(t, s, Tick{ChallengeID: old}, env)
	assert.ErrorIs(t, err, ErrStale)
}

func TestReduce_ResendKeepsTokenWithoutReplacement(t *testing.T) {
	env := testEnv()
	s := awaitingOTP(t, env)
	s.Countdown = 0
	s, _, err := step(t, s, ResendRequested{}, env)
	require.NoError(t, err)

	s, _, err = step(t, s, ResendCompleted{ChallengeID: s.Pending.ChallengeID}, env)
	require.NoError(t, err)
	assert.Equal(t, "T1", s.Pending.ChallengeToken)
}

func TestReduce_ResendFailureKeepsCountdown(t *testing.T) {
	env := testEnv()
	s := awaitingOTP(t, env)
	s.Countdown = 0
	s, _, err := step(t, s, ResendRequested{}, env)
	require.NoError(t, err)

	s, effects, err := step(t, s, ResendCompleted{ChallengeID: s.Pending.ChallengeID, Err: upstream.ErrRejected}, env)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Countdown)
	assert.Equal(t, OTPIdle, s.OTPInFlight)
	assert.Equal(t, model.NoticeResendFailed, notices(effects)[0].Category)
	for _, eff := range effects {
		_, restarted := eff.(StartTicker)
		assert.False(t, restarted)
	}
}

func TestReduce_Back(t *testing.T) {
	env := testEnv()
	s := awaitingOTP(t, env)
	s, _, err := step(t, s, VerifySubmitted{Code: "123456"}, env)
	require.NoError(t, err)
	challenge := s.Pending.ChallengeID

	s, effects, err := step(t, s, BackRequested{}, env)
	require.NoError(t, err)
	assert.Equal(t, Initial(), s)
	assert.Equal(t, []Effect{StopTicker{}}, effects)

	_, _, err = step(t, s, VerifyCompleted{ChallengeID: challenge, AccessToken: "A1"}, env)
	assert.ErrorIs(t, err, ErrStale)

	_, _, err = step(t, s, BackRequested{}, env)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReduce_ReadersLoaded(t *testing.T) {
	env := testEnv()
	s := authenticated(t, env)
	readers := []model.MeterReader{
		{ID: "MR9", Status: model.ReaderActive},
		{ID: "MR8", Status: model.ReaderOnField},
	}

	s, effects, err := step(t, s, ReadersLoaded{SessionID: s.Session.ID, Readers: readers}, env)
	require.NoError(t, err)
	assert.Empty(t, effects)
	assert.False(t, s.ReadersLoading)
	assert.Equal(t, readers, s.Readers)
	assert.False(t, s.ReadersFallback)
	assert.Equal(t, Dashboard{Total: 2, Active: 1, OnField: 1}, s.Dashboard())

	readers[0].ID = "mutated"
	assert.Equal(t, "MR9", s.Readers[0].ID)
}

func TestReduce_ReadersFallback(t *testing.T) {
	env := testEnv()
	s := authenticated(t, env)

	next, effects, err := step(t, s, ReadersLoaded{SessionID: s.Session.ID, Err: upstream.ErrTransport}, env)
	require.NoError(t, err)
	assert.Len(t, next.Readers, 3)
	assert.True(t, next.ReadersFallback)
	assert.Equal(t, "MR001", next.Readers[0].ID)
	n := notices(effects)
	require.Len(t, n, 1)
	assert.Equal(t, model.NoticeFetchFailed, n[0].Category)
	assert.Equal(t, "Failed to load meter readers. Please try again.", n[0].Message)

	opts := DefaultOptions()
	opts.FallbackReaders = false
	next, _, err = Reduce(s, ReadersLoaded{SessionID: s.Session.ID, Err: upstream.ErrTransport}, opts, env)
	require.NoError(t, err)
	assert.Empty(t, next.Readers)
	assert.False(t, next.ReadersFallback)
}

func TestReduce_ProfileLoaded(t *testing.T) {
	env := testEnv()
	s := authenticated(t, env)

	failed, effects, err := step(t, s, ProfileLoaded{SessionID: s.Session.ID, Err: upstream.ErrRejected}, env)
	require.NoError(t, err)
	assert.Nil(t, failed.Profile)
	assert.False(t, failed.ProfileLoading)
	assert.Empty(t, effects)

	ok, _, err := step(t, s, ProfileLoaded{SessionID: s.Session.ID, Profile: model.SupervisorProfile{Name: "Asha"}}, env)
	require.NoError(t, err)
	require.NotNil(t, ok.Profile)
	assert.Equal(t, "Asha", ok.Profile.Name)

	_, _, err = step(t, ok, ProfileLoaded{SessionID: s.Session.ID}, env)
	assert.ErrorIs(t, err, ErrStale, "already loaded")
}

func TestReduce_Refresh(t *testing.T) {
	env := testEnv()
	s := authenticated(t, env)

	_, _, err := step(t, s, RefreshRequested{}, env)
	assert.ErrorIs(t, err, ErrBusy)

	s, _, err = step(t, s, ReadersLoaded{SessionID: s.Session.ID, Readers: []model.MeterReader{{ID: "MR9"}}}, env)
	require.NoError(t, err)

	s, effects, err := step(t, s, RefreshRequested{}, env)
	require.NoError(t, err)
	assert.True(t, s.ReadersLoading)
	assert.Equal(t, []Effect{FetchReaders{SessionID: s.Session.ID, SupervisorID: "S1", AccessToken: "A1"}}, effects)
	assert.Len(t, s.Readers, 1, "previous list stays visible while refreshing")

	_, _, err = step(t, Initial(), RefreshRequested{}, env)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReduce_LogoutDiscardsLateReaders(t *testing.T) {
	env := testEnv()
	s := authenticated(t, env)
	session := s.Session.ID

	s, effects, err := step(t, s, LogoutRequested{}, env)
	require.NoError(t, err)
	assert.Equal(t, Initial(), s)
	assert.Equal(t, model.NoticeLoggedOut, notices(effects)[0].Category)

	s, _, err = step(t, s, ReadersLoaded{SessionID: session, Readers: []model.MeterReader{{ID: "MR9"}}}, env)
	assert.ErrorIs(t, err, ErrStale)
	assert.Empty(t, s.Readers)
}

func TestReduce_InvalidTransitions(t *testing.T) {
	env := testEnv()
	loggedOut := Initial()
	awaiting := awaitingOTP(t, env)
	authed := authenticated(t, env)

	tests := []struct {
		name string
		s    Snapshot
		ev   Event
	}{
		{"verify while logged out", loggedOut, VerifySubmitted{Code: "123456"}},
		{"logout while logged out", loggedOut, LogoutRequested{}},
		{"login while awaiting otp", awaiting, LoginSubmitted{SupervisorID: "S1", Mobile: "1"}},
		{"logout while awaiting otp", awaiting, LogoutRequested{}},
		{"login while authenticated", authed, LoginSubmitted{SupervisorID: "S1", Mobile: "1"}},
		{"verify while authenticated", authed, VerifySubmitted{Code: "123456"}},
		{"back while authenticated", authed, BackRequested{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, effects, err := step(t, tt.s, tt.ev, env)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tt.s, next)
			assert.Empty(t, effects)
		})
	}
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	env := testEnv()
	s := awaitingOTP(t, env)
	s.Countdown = 0
	before := s.Clone()

	s2, _, err := step(t, s, ResendRequested{}, env)
	require.NoError(t, err)
	_, _, err = step(t, s2, ResendCompleted{ChallengeID: s2.Pending.ChallengeID, Token: "T2"}, env)
	require.NoError(t, err)

	assert.Equal(t, before, s)
	assert.Equal(t, "T1", s.Pending.ChallengeToken)
}

func TestSnapshot_Validate(t *testing.T) {
	bad := Snapshot{
		State:   model.StateAwaitingOTP,
		Pending: &model.PendingAuth{},
		Session: &model.AuthenticatedSession{},
	}
	assert.Error(t, bad.Validate())

	assert.Error(t, Snapshot{State: model.StateLoggedOut, Readers: []model.MeterReader{{ID: "x"}}}.Validate())
	assert.Error(t, Snapshot{State: "unknown"}.Validate())
	assert.NoError(t, Initial().Validate())
}
