package flow

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// challengeExpiry reads the exp claim when the challenge token is a JWT and
// falls back to now+ttl otherwise. The signature is not checked; the upstream
// verifies its own token.
func challengeExpiry(token string, now time.Time, ttl time.Duration) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return now.Add(ttl)
}
