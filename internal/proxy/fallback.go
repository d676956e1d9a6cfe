package proxy

import (
	"encoding/json"
	"net/http"
	"time"
)

// FallbackBody is the degraded response returned when an upstream is
// unavailable.
type FallbackBody struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Fallback  bool   `json:"fallback"`
}

// FallbackResponder produces the canned degraded response for an
// unavailable upstream. It holds no state and performs no I/O beyond
// writing the response.
type FallbackResponder struct {
	now func() time.Time
}

// NewFallbackResponder creates a fallback responder.
func NewFallbackResponder() *FallbackResponder {
	return &FallbackResponder{now: time.Now}
}

// Body builds the fallback payload for the named upstream.
func (f *FallbackResponder) Body(service string) FallbackBody {
	return FallbackBody{
		Status:    "error",
		Message:   service + " is temporarily unavailable",
		Timestamp: f.now().UTC().Format(time.RFC3339),
		Fallback:  true,
	}
}

// Respond writes the fallback payload with a 503 status.
func (f *FallbackResponder) Respond(w http.ResponseWriter, service string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(f.Body(service))
}
