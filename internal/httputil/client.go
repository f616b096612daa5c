package httputil

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds every outbound request, including body reads.
const DefaultTimeout = 30 * time.Second

// NewClient builds the shared HTTP client used for all external API calls.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
	}
}
