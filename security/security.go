package security

import (
	"net/http"
)

// maxLoggedPayload caps how much of a raw webhook body ends up in the logs.
const maxLoggedPayload = 2048

// SanitizeHeaders removes sensitive headers before a request is logged.
// Gateway credential headers are included so webhook deliveries can be
// logged without leaking API keys.
func SanitizeHeaders(headers http.Header) http.Header {
	sensitiveHeaders := []string{
		"Authorization",
		"Cookie",
		"Set-Cookie",
		"X-CSRF-Token",
		"X-Api-Key",
		"X-Access-Token",
	}

	sanitized := headers.Clone()
	for _, header := range sensitiveHeaders {
		sanitized.Del(header)
	}
	return sanitized
}

// TruncatePayload shortens a raw payload for logging.
func TruncatePayload(payload []byte) string {
	if len(payload) > maxLoggedPayload {
		return string(payload[:maxLoggedPayload]) + "...(truncated)"
	}
	return string(payload)
}
