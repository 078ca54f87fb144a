package api

import (
	"fmt"
	"net"
	"net/http"

	"github.com/okian/mlscore/internal/domain/types"
)

// GreetingHandler answers the connectivity check used when wiring up a
// cluster: it names the caller and the instance that answered.
type GreetingHandler struct {
	host HostInfo
}

// NewGreetingHandler creates a new greeting handler.
func NewGreetingHandler(host HostInfo) *GreetingHandler {
	return &GreetingHandler{host: host}
}

// HandleGreeting handles GET /test_api requests.
func (h *GreetingHandler) HandleGreeting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "api.test_api", http.MethodGet)
		return
	}
	msg := fmt.Sprintf("Hello %s, you've reached %s", remoteIP(r), h.host.HostAddress())
	writeJSON(w, http.StatusOK, types.GreetingResponse{Message: msg})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
