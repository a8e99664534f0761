package handlers

import (
	"github.com/rezars19/rz-automedata/internal/app/service/license"
	"github.com/rezars19/rz-automedata/internal/app/service/statistics"
	"github.com/rezars19/rz-automedata/pkg/response"
)

// Envelope aliases so swag can emit concrete schemas for the generic
// response.APIResponse[T].

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespRegister struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    RegisterResponse         `json:"data"`
}

type RespLicenseCheck struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    LicenseCheckResponse     `json:"data"`
}

type RespVersions struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []AppVersionItem         `json:"data"`
}

type RespLogin struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    LoginResponse            `json:"data"`
}

type RespActivate struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    license.ActivateResult   `json:"data"`
}

type RespListLicenses struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ListLicensesResponse     `json:"data"`
}

type RespActivity struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ListActivityResponse     `json:"data"`
}

type RespStatistics struct {
	Code    response.APIResponseCode       `json:"code"`
	Message string                         `json:"message"`
	Data    statistics.DashboardStatistics `json:"data"`
}

type RespSettings struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    map[string]string        `json:"data"`
}
