package model

import "encoding/json"

// ReaderStatus is the duty status reported for a meter reader.
type ReaderStatus string

const (
	ReaderActive   ReaderStatus = "active"
	ReaderInactive ReaderStatus = "inactive"
	ReaderOnField  ReaderStatus = "on-field"
)

// Known reports whether s is one of the statuses the upstream documents.
func (s ReaderStatus) Known() bool {
	switch s {
	case ReaderActive, ReaderInactive, ReaderOnField:
		return true
	}
	return false
}

// MeterReader is a read-only mirror of a reader supervised by the logged-in supervisor.
type MeterReader struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Mobile        string       `json:"mobile"`
	Email         string       `json:"email"`
	Area          string       `json:"area"`
	Status        ReaderStatus `json:"status"`
	LastReading   string       `json:"lastReading"`
	TotalReadings int          `json:"totalReadings"`
}

// SupervisorProfile is the details object returned for a supervisor. Raw keeps
// the full upstream body since its shape is owned by the external service.
type SupervisorProfile struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Mobile string          `json:"mobile"`
	Email  string          `json:"email"`
	Area   string          `json:"area"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}
