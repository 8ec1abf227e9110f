package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/marmos91/tollgate/internal/logger"
	"github.com/marmos91/tollgate/pkg/api/middleware"
	"github.com/marmos91/tollgate/pkg/gateway"
)

// Gateway is the validation engine surface the HTTP layer consumes.
type Gateway interface {
	// Validate runs one credential through the admission pipeline.
	Validate(ctx context.Context, credential, requestID string) gateway.Response

	// ReplayCacheSize reports the number of credential IDs currently held.
	ReplayCacheSize() int

	// Metrics exposes the engine's counters.
	Metrics() *gateway.Metrics
}

var _ Gateway = (*gateway.Engine)(nil)

// ValidateHandler handles the credential validation endpoint.
type ValidateHandler struct {
	gateway Gateway
}

// NewValidateHandler creates a new ValidateHandler.
func NewValidateHandler(gw Gateway) *ValidateHandler {
	return &ValidateHandler{gateway: gw}
}

// ValidateRequest is the request body for POST /validate.
type ValidateRequest struct {
	// Token is a pointer so an absent field can be told apart from an
	// empty credential. An empty credential is still run through the
	// pipeline (and denied as malformed); an absent field is a client
	// error.
	Token *string `json:"token"`
}

// Validate handles POST /validate.
//
// Every processed request responds with HTTP 200, DENY verdicts included;
// the enforcement outcome lives in the body. Only bodies the handler cannot
// parse are rejected at the HTTP layer, with a 422 problem response.
func (h *ValidateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		UnprocessableEntity(w, "Request body must be valid JSON")
		return
	}
	if req.Token == nil {
		UnprocessableEntity(w, `Field "token" is required`)
		return
	}

	requestID := middleware.GetRequestID(r.Context())
	resp := h.gateway.Validate(r.Context(), *req.Token, requestID)

	if lc := logger.FromContext(r.Context()); lc != nil {
		logger.DebugCtx(r.Context(), "Admission decision",
			"decision", string(resp.Decision),
			"duration_ms", lc.DurationMs())
	}

	WriteJSONOK(w, resp)
}
