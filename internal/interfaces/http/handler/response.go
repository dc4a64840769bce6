package handler

import "github.com/marketsync/backend/internal/interfaces/http/dto"

// Envelope is the typed form of every JSON body the API returns. Handlers
// build it through dto; the OpenAPI annotations and the handler tests use
// the typed form so both agree on the payload of each route.
// @Description Response wrapper; connection and job lists carry meta.total
type Envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorEnvelope documents failed requests. Locked and queued job triggers
// return it with ERR_LOCKED and ERR_JOB_QUEUED.
// @Description Error response
type ErrorEnvelope struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error"`
}
