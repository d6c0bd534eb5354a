package httpx

import (
	"net/http"
	"strconv"
	"strings"
)

// Status codes the gateway and its clients speak.
const (
	StatusOK                 = http.StatusOK
	StatusCreated            = http.StatusCreated
	StatusNoContent          = http.StatusNoContent
	StatusBadRequest         = http.StatusBadRequest
	StatusUnauthorized       = http.StatusUnauthorized
	StatusForbidden          = http.StatusForbidden
	StatusConflict           = http.StatusConflict
	StatusInternalError      = http.StatusInternalServerError
	StatusBadGateway         = http.StatusBadGateway
	StatusServiceUnavailable = http.StatusServiceUnavailable
	StatusGatewayTimeout     = http.StatusGatewayTimeout
)

// Successful reports whether code is in the 2xx range.
func Successful(code int) bool { return code >= 200 && code < 300 }

// StatusText prefers the reason phrase from the response ("401 Unauthorized"
// becomes "Unauthorized") and falls back to the canonical text for the code.
func StatusText(code int, raw string) string {
	if _, phrase, ok := strings.Cut(raw, " "); ok && phrase != "" {
		return phrase
	}
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "status " + strconv.Itoa(code)
}
