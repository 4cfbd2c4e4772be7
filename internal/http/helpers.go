package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// chartCacheKey builds the response cache key. The dataset version comes
// first so every cached chart expires together on reload.
func chartCacheKey(version int64, r *http.Request) string {
	return strconv.FormatInt(version, 10) + "|" + r.URL.Path + "?" + r.URL.Query().Encode()
}

// formatShorthand renders a dollar amount the way the dashboard headline
// shows it: $22.4M, $910.5K, $37. Negative amounts keep the sign.
func formatShorthand(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	var out string
	switch {
	case v >= 1e9:
		out = fmt.Sprintf("$%.1fB", v/1e9)
	case v >= 1e6:
		out = fmt.Sprintf("$%.1fM", v/1e6)
	case v >= 1e3:
		out = fmt.Sprintf("$%.1fK", v/1e3)
	default:
		out = fmt.Sprintf("$%.0f", v)
	}
	if neg {
		return "-" + out
	}
	return out
}

// writeJSON encodes v as the response body with a 200 status.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error body with the given status.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
