package apiclient

import (
	"encoding/json"
	"strings"
)

const redactedValue = "[REDACTED]"

// RedactPayload prepares a vendor response body for logging: token-like
// fields are masked at any nesting depth. Non-JSON bodies are truncated
// and returned as-is (vendors only place secrets in JSON fields).
func RedactPayload(body []byte) string {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return truncate(string(body))
	}

	redacted, err := json.Marshal(redactValue(decoded))
	if err != nil {
		return truncate(string(body))
	}
	return truncate(string(redacted))
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if isSecretField(k) {
				out[k] = redactedValue
				continue
			}
			out[k] = redactValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = redactValue(inner)
		}
		return out
	default:
		return v
	}
}

func isSecretField(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") ||
		strings.Contains(k, "secret") ||
		strings.Contains(k, "authorization")
}

func truncate(s string) string {
	if len(s) > maxLoggedBody {
		return s[:maxLoggedBody] + "...(truncated)"
	}
	return s
}
