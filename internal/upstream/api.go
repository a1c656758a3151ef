package upstream

import "supervisor-console/internal/model"

type credentialsRequest struct {
	SupervisorID string `json:"supervisorId"`
	Mobile       string `json:"mobile"`
}

type verifyRequest struct {
	SupervisorID string `json:"supervisorId"`
	Mobile       string `json:"mobile"`
	OTP          string `json:"otp"`
}

type loginResponse struct {
	TempToken string `json:"tempToken"`
}

type verifyResponse struct {
	AccessToken string `json:"accessToken"`
}

type meterReadersResponse struct {
	MeterReaders []model.MeterReader `json:"meterReaders"`
}

// errorBody is the optional structured error some deployments return.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
