package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	otpRe        = regexp.MustCompile(`^[0-9]{6}$`)
	mobileMaskRe = regexp.MustCompile(`([0-9]{6})[0-9]{4}`)
)

// ErrMissingCredentials is returned when the supervisor ID or mobile is blank.
var ErrMissingCredentials = errors.New("supervisor ID and mobile number are required")

// Credentials trims both fields and requires them to be non-empty. Format is
// not checked further: the upstream service decides what a valid ID is.
func Credentials(supervisorID, mobile string) (string, string, error) {
	supervisorID = strings.TrimSpace(supervisorID)
	mobile = strings.TrimSpace(mobile)
	if supervisorID == "" || mobile == "" {
		return "", "", ErrMissingCredentials
	}
	return supervisorID, mobile, nil
}

// ValidOTP reports whether code is exactly six ASCII digits.
func ValidOTP(code string) bool {
	return otpRe.MatchString(code)
}

// MaskMobile hides four digits following the first run of six, e.g.
// "9998887770" becomes "999888****". Shorter numbers are returned as-is.
func MaskMobile(mobile string) string {
	loc := mobileMaskRe.FindStringSubmatchIndex(mobile)
	if loc == nil {
		return mobile
	}
	return mobile[:loc[0]] + mobile[loc[2]:loc[3]] + "****" + mobile[loc[1]:]
}

// Countdown renders seconds as m:ss.
func Countdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// StatusLabel turns a reader status such as "on-field" into "On field".
// Empty statuses render as "Inactive".
func StatusLabel(status string) string {
	if status == "" {
		status = "inactive"
	}
	label := strings.ToUpper(status[:1]) + status[1:]
	return strings.Replace(label, "-", " ", 1)
}
