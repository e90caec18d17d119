package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/mediabridge/pkg/httpclient"
)

// CircuitBreakerHandler handles circuit breaker API endpoints.
type CircuitBreakerHandler struct {
	manager *httpclient.CircuitBreakerManager
}

// NewCircuitBreakerHandler creates a new circuit breaker handler.
func NewCircuitBreakerHandler(manager *httpclient.CircuitBreakerManager) *CircuitBreakerHandler {
	return &CircuitBreakerHandler{manager: manager}
}

// Register registers the circuit breaker routes with the API.
func (h *CircuitBreakerHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listCircuitBreakers",
		Method:      "GET",
		Path:        "/api/v1/circuit-breakers",
		Summary:     "List circuit breakers",
		Description: "Returns the per-backend circuit breaker states and the configured thresholds",
		Tags:        []string{"Circuit Breakers"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "updateCircuitBreakerConfig",
		Method:      "PUT",
		Path:        "/api/v1/circuit-breakers/config",
		Summary:     "Update circuit breaker configuration",
		Description: "Updates thresholds at runtime for every existing and future breaker",
		Tags:        []string{"Circuit Breakers"},
	}, h.UpdateConfig)

	huma.Register(api, huma.Operation{
		OperationID: "resetCircuitBreaker",
		Method:      "POST",
		Path:        "/api/v1/circuit-breakers/{name}/reset",
		Summary:     "Reset a circuit breaker",
		Description: "Resets a specific circuit breaker to closed state",
		Tags:        []string{"Circuit Breakers"},
	}, h.Reset)

	huma.Register(api, huma.Operation{
		OperationID: "resetAllCircuitBreakers",
		Method:      "POST",
		Path:        "/api/v1/circuit-breakers/reset",
		Summary:     "Reset all circuit breakers",
		Description: "Resets all circuit breakers to closed state",
		Tags:        []string{"Circuit Breakers"},
	}, h.ResetAll)
}

// BreakerConfigResponse is the configured thresholds with a readable timeout.
type BreakerConfigResponse struct {
	FailureThreshold int    `json:"failureThreshold"`
	ResetTimeout     string `json:"resetTimeout"`
	HalfOpenMax      int    `json:"halfOpenMax"`
}

func breakerConfigResponse(cfg httpclient.BreakerConfig) BreakerConfigResponse {
	return BreakerConfigResponse{
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout.String(),
		HalfOpenMax:      cfg.HalfOpenMax,
	}
}

// ListCircuitBreakersInput is the input for listing circuit breakers.
type ListCircuitBreakersInput struct{}

// ListCircuitBreakersOutput is the output for listing circuit breakers.
type ListCircuitBreakersOutput struct {
	Body struct {
		Config   BreakerConfigResponse     `json:"config"`
		Breakers []httpclient.BreakerStats `json:"breakers"`
	}
}

// List returns breaker states.
func (h *CircuitBreakerHandler) List(_ context.Context, _ *ListCircuitBreakersInput) (*ListCircuitBreakersOutput, error) {
	resp := &ListCircuitBreakersOutput{}
	resp.Body.Config = breakerConfigResponse(h.manager.Config())
	resp.Body.Breakers = h.manager.AllStats()
	return resp, nil
}

// UpdateConfigInput is the input for updating breaker thresholds.
type UpdateConfigInput struct {
	Body struct {
		FailureThreshold int    `json:"failureThreshold,omitempty" minimum:"1"`
		ResetTimeout     string `json:"resetTimeout,omitempty" doc:"Go duration, e.g. 30s"`
		HalfOpenMax      int    `json:"halfOpenMax,omitempty" minimum:"1"`
	}
}

// UpdateConfigOutput is the output for updating breaker thresholds.
type UpdateConfigOutput struct {
	Body BreakerConfigResponse
}

// UpdateConfig changes thresholds. Omitted fields keep their value.
func (h *CircuitBreakerHandler) UpdateConfig(_ context.Context, input *UpdateConfigInput) (*UpdateConfigOutput, error) {
	cfg := h.manager.Config()
	if input.Body.FailureThreshold > 0 {
		cfg.FailureThreshold = input.Body.FailureThreshold
	}
	if input.Body.HalfOpenMax > 0 {
		cfg.HalfOpenMax = input.Body.HalfOpenMax
	}
	if input.Body.ResetTimeout != "" {
		d, err := time.ParseDuration(input.Body.ResetTimeout)
		if err != nil || d <= 0 {
			return nil, huma.Error400BadRequest(fmt.Sprintf("invalid resetTimeout %q", input.Body.ResetTimeout))
		}
		cfg.ResetTimeout = d
	}
	h.manager.UpdateConfig(cfg)
	return &UpdateConfigOutput{Body: breakerConfigResponse(h.manager.Config())}, nil
}

// ResetCircuitBreakerInput names one breaker.
type ResetCircuitBreakerInput struct {
	Name string `path:"name" doc:"Breaker name (backend host)"`
}

// ResetOutput is the output for breaker resets.
type ResetOutput struct {
	Body struct {
		Reset int `json:"reset"`
	}
}

// Reset closes one breaker.
func (h *CircuitBreakerHandler) Reset(_ context.Context, input *ResetCircuitBreakerInput) (*ResetOutput, error) {
	if !h.manager.Reset(input.Name) {
		return nil, huma.Error404NotFound(fmt.Sprintf("circuit breaker %q not found", input.Name))
	}
	resp := &ResetOutput{}
	resp.Body.Reset = 1
	return resp, nil
}

// ResetAllInput is the input for resetting every breaker.
type ResetAllInput struct{}

// ResetAll closes every breaker.
func (h *CircuitBreakerHandler) ResetAll(_ context.Context, _ *ResetAllInput) (*ResetOutput, error) {
	resp := &ResetOutput{}
	resp.Body.Reset = h.manager.ResetAll()
	return resp, nil
}
